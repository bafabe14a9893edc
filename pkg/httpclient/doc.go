// Package httpclient はサービス間のHTTP通信を行うクライアントを提供する。
//
// gatewayからauthサービスへのトークン検証の委譲、
// バックエンドサービスへのヘルスチェックなど、
// サービス間の通信パターンを統一する。
package httpclient
