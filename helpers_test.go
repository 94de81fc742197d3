package atri

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-telegram/bot/models"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"go.uber.org/zap/zaptest"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	ownerID       int64 = 1001
	ownerUsername       = "owner"
	strangerID    int64 = 2002
)

type telegramCall struct {
	Method string
	Values url.Values
}

// fakeTelegram 记录Bot发出的所有请求
type fakeTelegram struct {
	mu    sync.Mutex
	calls []telegramCall
	srv   *httptest.Server
}

func newFakeTelegram(t *testing.T) *fakeTelegram {
	t.Helper()
	f := &fakeTelegram{}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeTelegram) serve(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	values := url.Values{}
	if err := r.ParseMultipartForm(1 << 20); err == nil && r.MultipartForm != nil {
		for k, v := range r.MultipartForm.Value {
			values[k] = v
		}
	} else if err := r.ParseForm(); err == nil {
		values = r.PostForm
	}

	f.mu.Lock()
	f.calls = append(f.calls, telegramCall{Method: method, Values: values})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch method {
	case "getMe":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"Atri","username":"atri_bot"}}`)
	case "sendMessage":
		_, _ = io.WriteString(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`)
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeTelegram) sent(method string) []url.Values {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []url.Values
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c.Values)
		}
	}
	return out
}

// texts 返回所有sendMessage的文本
func (f *fakeTelegram) texts() []string {
	var out []string
	for _, v := range f.sent("sendMessage") {
		out = append(out, v.Get("text"))
	}
	return out
}

func (f *fakeTelegram) reset() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// fakeOpenAI 是一个可替换响应的补全接口
type fakeOpenAI struct {
	mu       sync.Mutex
	bodies   []string
	status   int
	response string
	billing  string
	srv      *httptest.Server
}

func newFakeOpenAI(t *testing.T) *fakeOpenAI {
	t.Helper()
	f := &fakeOpenAI{
		status:   http.StatusOK,
		response: completionJSON("Hi there"),
		billing:  `{"object":"credit_summary","total_granted":18,"total_used":1.2345,"total_available":16.7655}`,
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeOpenAI) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/v1/chat/completions":
		f.bodies = append(f.bodies, string(body))
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.response)
	case "/dashboard/billing/credit_grants":
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, f.billing)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"error":{"message":"not found"}}`)
	}
}

func (f *fakeOpenAI) respond(status int, body string) {
	f.mu.Lock()
	f.status = status
	f.response = body
	f.billing = body
	f.mu.Unlock()
}

func (f *fakeOpenAI) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string{}, f.bodies...)
}

func (f *fakeOpenAI) client() *openai.Client {
	c := openai.NewClient(
		option.WithAPIKey("sk-test"),
		option.WithBaseURL(f.srv.URL+"/v1/"),
		option.WithMaxRetries(0),
	)
	return &c
}

func completionJSON(answer string) string {
	return `{"id":"chatcmpl-1","object":"chat.completion","created":1,"model":"gpt-3.5-turbo",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":"` + answer + `"},"finish_reason":"stop","logprobs":null}],` +
		`"usage":{"prompt_tokens":5,"completion_tokens":3,"total_tokens":8}}`
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "atri.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type testEnv struct {
	atri     *Atri
	telegram *fakeTelegram
	openai   *fakeOpenAI
	db       *gorm.DB
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	tg := newFakeTelegram(t)
	ai := newFakeOpenAI(t)
	db := newTestDB(t)

	cfg := Config{
		BotToken:          "123456:test-token",
		AllowedUsers:      []string{"@" + ownerUsername},
		WebhookSecret:     "s3cret",
		DedupRepeats:      true,
		BillingBaseURL:    ai.srv.URL + "/",
		TelegramServerURL: tg.srv.URL,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	a := New(zaptest.NewLogger(t), ai.client(), db, cfg)
	if err := a.setupBot(); err != nil {
		t.Fatalf("setupBot() error = %v", err)
	}
	if err := a.setupDB(); err != nil {
		t.Fatalf("setupDB() error = %v", err)
	}
	tg.reset()

	return &testEnv{atri: a, telegram: tg, openai: ai, db: db}
}

func (e *testEnv) send(t *testing.T, userID int64, username, text string) {
	t.Helper()
	e.atri.handleUpdate(context.Background(), e.atri.bot, &models.Update{
		ID: 1,
		Message: &models.Message{
			ID:   1,
			From: &models.User{ID: userID, Username: username},
			Chat: models.Chat{ID: userID},
			Text: text,
		},
	})
}

func (e *testEnv) press(t *testing.T, userID int64, username, data string) {
	t.Helper()
	e.atri.handleUpdate(context.Background(), e.atri.bot, &models.Update{
		ID: 2,
		CallbackQuery: &models.CallbackQuery{
			ID:   "cb-1",
			From: models.User{ID: userID, Username: username},
			Data: data,
		},
	})
}

func (e *testEnv) storedHistory(t *testing.T, userID int64) []Message {
	t.Helper()
	records, err := gorm.G[dialogueRecord](e.db).Where("user_id = ?", userID).Find(context.Background())
	if err != nil {
		t.Fatalf("load dialogues: %v", err)
	}
	if len(records) == 0 {
		return nil
	}
	return []Message(records[0].Message)
}

func (e *testEnv) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
