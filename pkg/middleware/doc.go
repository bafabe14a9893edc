// Package middleware はGinベースのHTTP APIで使用する共通ミドルウェアを提供する。
//
// JWTトークンの発行・検証、認証局委譲型のトークン検証、
// パニックリカバリ、CORS設定など、全サービスで共通して使用する
// ミドルウェアを含む。
package middleware
