// Package authclient はauthサービス（認証局）へのHTTPクライアントを提供する。
//
// gatewayはトークンの署名鍵を持たず、検証をこのクライアント経由で
// authサービスに委譲する。
package authclient
