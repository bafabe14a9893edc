// Package tasks はタスクリソースサービスの内部実装を提供する。
//
// タスクのCRUDと所有ユーザーごとの一覧取得を担当する。
// 全ルートでトークンを自ら再検証するため、gatewayを経由せず
// 直接呼び出された場合も認可は保たれる。
package tasks
