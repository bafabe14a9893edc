// Package users はユーザーリソースサービスの内部実装を提供する。
//
// ユーザープロフィールのCRUDを担当する。認証情報（パスワード）は
// authサービスが所有し、このサービスは同じユーザーデータベースの
// プロフィール面のみを扱う。全ルートでトークンを自ら再検証するため、
// gatewayを経由せず直接呼び出された場合も認可は保たれる。
package users
