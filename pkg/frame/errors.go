/*
【ファイル概要: errors.go】
frame パッケージのエラー定義を提供します。

1. ErrNoActiveTransaction
  - アクティブなトランザクションが存在しない状態で Enqueue* を
    呼んだ場合に返される（AuthTagSlot はエラーを返さず nil を返す）
  - 発生箇所: Transaction.EnqueueMessage, Transaction.EnqueueBuffers

2. ErrInvalidMessage
  - 空のメッセージ、または空のバッファ列をエンキューしようとした場合
  - 発生箇所: 同上
*/
package frame

import "errors"

var (
	ErrNoActiveTransaction = errors.New("frame: no active transaction")
	ErrInvalidMessage      = errors.New("frame: invalid message or buffer set")
)
