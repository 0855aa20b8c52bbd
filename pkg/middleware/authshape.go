package middleware

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// shapingWriter は後続ステージの書き込みをバッファに溜め込むResponseWriter。
// 最終ステータスを見てから本文を確定するため、送出を遅延させる。
type shapingWriter struct {
	gin.ResponseWriter
	// body は後続ステージが書き込んだ本文のバッファ。
	body bytes.Buffer
	// status は後続ステージが設定したステータスコード。未設定は0。
	status int
}

// WriteHeader はステータスコードを記録し、送出は行わない。
func (w *shapingWriter) WriteHeader(code int) {
	w.status = code
}

// WriteHeaderNow は何もしない。送出タイミングはミドルウェア側が決める。
func (w *shapingWriter) WriteHeaderNow() {}

// Write は本文をバッファに書き込む。
func (w *shapingWriter) Write(b []byte) (int, error) {
	return w.body.Write(b)
}

// WriteString は本文をバッファに書き込む。
func (w *shapingWriter) WriteString(s string) (int, error) {
	return w.body.WriteString(s)
}

// Status は記録済みのステータスコードを返す。未設定の場合は200。
func (w *shapingWriter) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// Size はバッファ済み本文のサイズを返す。
func (w *shapingWriter) Size() int {
	return w.body.Len()
}

// Written はステータスまたは本文が書き込まれたかどうかを返す。
func (w *shapingWriter) Written() bool {
	return w.status != 0 || w.body.Len() > 0
}

// AuthErrorShaper は認証・認可エラーの本文を統一形式に整形するGinミドルウェアを返す。
//
// 後続ステージ（トークン検証・ロール認可）が設定するステータスコードに
// 反応する必要があるため、先にResponseWriterを差し替えておき、
// チェーン完了後に最終ステータスが401または403なら本文を破棄して
// {"message": ...} に置き換える。それ以外はバッファした本文をそのまま送出する。
// このミドルウェアより前のステージの拒否（APIキー、レート制限）は対象外。
func AuthErrorShaper() gin.HandlerFunc {
	return func(c *gin.Context) {
		sw := &shapingWriter{ResponseWriter: c.Writer}
		c.Writer = sw
		completed := false

		// パニックで巻き戻る場合もResponseWriterを必ず元に戻す。
		// その場合バッファは破棄し、送出は外側のリカバリに任せる。
		defer func() {
			c.Writer = sw.ResponseWriter
			if !completed {
				return
			}

			switch status := sw.Status(); status {
			case http.StatusUnauthorized:
				writeShaped(c.Writer, status, "認証に失敗しました。ログインしてください。")
			case http.StatusForbidden:
				writeShaped(c.Writer, status, "この操作を行う権限がありません。")
			default:
				if sw.status != 0 {
					c.Writer.WriteHeader(sw.status)
				}
				if sw.body.Len() > 0 {
					if _, err := c.Writer.Write(sw.body.Bytes()); err != nil {
						log.Printf("[AuthErrorShaper] レスポンス本文の送出に失敗: %v", err)
					}
				}
			}
		}()

		c.Next()
		completed = true
	}
}

// writeShaped は統一形式のJSONエラー本文を送出する。
func writeShaped(w gin.ResponseWriter, status int, message string) {
	body, err := json.Marshal(gin.H{"message": message})
	if err != nil {
		// gin.Hのシリアライズは失敗しないが、念のためステータスだけは返す
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		log.Printf("[AuthErrorShaper] エラー本文の送出に失敗: %v", err)
	}
}
