package ratelimit

import (
	"sync"
	"time"
)

// Decision はレート制限の判定結果。
type Decision struct {
	// Allowed はリクエストを通過させてよいかどうか。
	Allowed bool
	// RetryAfter は拒否時にクライアントへ提示する再試行までの待ち時間。
	// 常にウィンドウ長そのものを返す（残り時間の近似）。許可時はゼロ。
	RetryAfter time.Duration
}

// clientWindow は1クライアント分のウィンドウ状態。
// countの検査と加算は必ずmuを保持して行う。
type clientWindow struct {
	mu sync.Mutex
	// windowStart は現在のウィンドウの開始時刻。
	windowStart time.Time
	// count は現在のウィンドウ内で数えたリクエスト数。
	count int
}

// Limiter はクライアントごとの固定ウィンドウ方式レートリミッター。
//
// ウィンドウ境界をまたぐ短い区間では最大で maxRequests の2倍まで
// 通過しうる。これはスライディングウィンドウではなく固定ウィンドウの
// 既知の挙動であり、RetryAfterがウィンドウ全長を返す契約と対になっている。
// クライアントのエントリは削除されないため、プロセスが長寿命で
// クライアント数が無制限の場合はメモリが増え続ける。
type Limiter struct {
	// mu はclientsマップ自体の参照・追加を守る。
	// エントリ取得後のカウンタ操作はエントリ側のロックで守るため、
	// 異なるクライアント同士は直列化されない。
	mu      sync.Mutex
	clients map[string]*clientWindow

	// maxRequests は1ウィンドウあたりの上限リクエスト数。
	maxRequests int
	// window はウィンドウの長さ。
	window time.Duration
}

// New は新しいレートリミッターを生成する。
func New(maxRequests int, window time.Duration) *Limiter {
	return &Limiter{
		clients:     make(map[string]*clientWindow),
		maxRequests: maxRequests,
		window:      window,
	}
}

// Allow はclientIDからのリクエスト1件を数え、通過可否を判定する。
//
// clientIDが空の場合は無条件に通過させる（フェイルオープン）。
// 帰属できないトラフィックをリミッターが止めてはならないため。
// 同一クライアントからの並行呼び出しに対してカウンタ更新は直列化され、
// 1ウィンドウでmaxRequestsを超えて許可されることはない。
func (l *Limiter) Allow(clientID string, now time.Time) Decision {
	if clientID == "" {
		return Decision{Allowed: true}
	}

	cw := l.lookup(clientID)

	cw.mu.Lock()
	defer cw.mu.Unlock()

	if now.Sub(cw.windowStart) > l.window {
		// 新しいウィンドウの開始。今回のリクエストから数え直す。
		cw.windowStart = now
		cw.count = 0
	}

	cw.count++
	if cw.count > l.maxRequests {
		return Decision{Allowed: false, RetryAfter: l.window}
	}
	return Decision{Allowed: true}
}

// Window はウィンドウ長を返す。
func (l *Limiter) Window() time.Duration {
	return l.window
}

// lookup はクライアントのウィンドウ状態を取得する。存在しなければ作成する。
func (l *Limiter) lookup(clientID string) *clientWindow {
	l.mu.Lock()
	defer l.mu.Unlock()

	cw, ok := l.clients[clientID]
	if !ok {
		cw = &clientWindow{}
		l.clients[clientID] = cw
	}
	return cw
}
