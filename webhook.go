package atri

import (
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// webhookHandler 校验查询参数中的secret后再交给Bot处理
func (a *Atri) webhookHandler() http.Handler {
	return secretGate(a.config.WebhookSecret, a.bot.WebhookHandler(), a.logger)
}

func secretGate(secret string, next http.Handler, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.URL.Query().Get("secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			logger.Warn("拒绝了未授权的Webhook请求", zap.String("RemoteAddr", r.RemoteAddr))
			http.Error(w, "not allowed", http.StatusMethodNotAllowed)
			return
		}
		next.ServeHTTP(w, r)
	})
}
