package content

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Index はアクティブなスナップショットを保持し、アトミックに入れ替える。
//
// 2つの不変条件を保証する:
//
//  1. リーダーが新旧データの混在した索引を観測することはない。
//     入れ替えはポインタのアトミックなswapであり、取得済みの参照は
//     そのリーダーが終了するまで有効なまま残る。
//  2. 再読み込みが全体として失敗した場合、直前のスナップショットが
//     アクティブなまま維持され、失敗はログに記録されるだけで
//     リーダーには伝播しない。
type Index struct {
	loader *Loader
	logger *slog.Logger

	active  atomic.Pointer[Snapshot]
	nextGen atomic.Uint64

	// 再読み込みは直列に実行する。進行中の再読み込みは
	// 現行スナップショットへの問い合わせをブロックしない。
	reloadMu sync.Mutex
}

// NewIndex はIndexの新しいインスタンスを生成する。
// 初回のReloadまでは空のスナップショット（世代0）を提供する。
func NewIndex(loader *Loader, logger *slog.Logger) *Index {
	ix := &Index{
		loader: loader,
		logger: logger,
	}
	ix.active.Store(NewSnapshot(0, nil))
	return ix
}

// Snapshot は現在アクティブなスナップショットを返す。常に非nil。
func (ix *Index) Snapshot() *Snapshot {
	return ix.active.Load()
}

// Reload はコーパス全体を再読み込みし、成功時に新しいスナップショットを
// アクティブにして返す。失敗時は直前のスナップショットを維持したまま
// エラーを返す（呼び出し側はログに記録するのみで、リーダーへは伝播させない）。
func (ix *Index) Reload(ctx context.Context) (*Snapshot, error) {
	ix.reloadMu.Lock()
	defer ix.reloadMu.Unlock()

	gen := ix.nextGen.Add(1)
	snap, err := ix.loader.Load(ctx, gen)
	if err != nil {
		ix.logger.Error("コーパスの再読み込みに失敗しました。直前のスナップショットを維持します",
			slog.Uint64("generation", gen),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	ix.active.Store(snap)
	return snap, nil
}
