// Package gateway はAPI Gatewayサービスの内部実装を提供する。
//
// 外部からアクセス可能な唯一のサービスであり、セキュリティの境界線として
// 機能する。ベアラートークンの検証をauthサービスに委譲し、検証済みの
// リクエストをバックエンドサービスに転送する。ストレージには一切触れず、
// リクエスト横断の可変状態も持たない純粋な調整レイヤー。
package gateway
