// Package auth は認証局サービスの内部実装を提供する。
//
// パスワードのハッシュ化と照合、ベアラートークン（JWT）の発行と検証を
// 一手に担う。パスワードハッシュはこのサービスの外に出ることはない。
// トークン検証ではペイロードを信用せず、ユーザーをストアから再取得する。
// これにより削除済みアカウントのトークンは即座に無効化される。
package auth
