package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"newsdigest/database"
	"newsdigest/handlers"
	"newsdigest/logger"
	"newsdigest/models"
	"newsdigest/store"
	"newsdigest/templates"
)

type sentLink struct {
	Email     string
	Returning bool
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentLink
	err  error
}

func (f *fakeSender) SendLinks(_ context.Context, sub models.Subscriber, returning bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentLink{Email: sub.Email, Returning: returning})
	return f.err
}

type testServer struct {
	router *gin.Engine
	store  *store.Subscribers
	sender *fakeSender
}

func setup(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	tmpl, err := templates.Load()
	require.NoError(t, err)

	s := store.NewSubscribers(db)
	sender := &fakeSender{}
	r := gin.New()
	r.SetHTMLTemplate(tmpl)
	handlers.New(s, sender, "test-secret", logger.Discard()).Register(r)

	return &testServer{router: r, store: s, sender: sender}
}

func (ts *testServer) get(target string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestIndex(t *testing.T) {
	ts := setup(t)

	w := ts.get("/")

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `action="/signup"`)
	assert.Contains(t, body, `name="include_stock_suite"`)
}

func TestSignup(t *testing.T) {
	ts := setup(t)

	w := ts.post("/signup", url.Values{
		"email":               {"Reader@Example.com"},
		"text":                {"bitcoin, ai"},
		"include_sp500_chart": {"true"},
		"include_market_news": {"true"},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/success", w.Header().Get("Location"))

	sub, err := ts.store.FindByEmail("reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin, ai", sub.Topics)
	assert.True(t, sub.Flags.SP500Chart)
	assert.True(t, sub.Flags.MarketNews)
	assert.False(t, sub.Flags.BitcoinChart)

	require.Len(t, ts.sender.sent, 1)
	assert.Equal(t, sentLink{Email: "reader@example.com"}, ts.sender.sent[0])

	page := ts.get("/success", w.Result().Cookies()...)
	assert.Contains(t, page.Body.String(), "You are subscribed.")
}

func TestSignupOnSubmitAlias(t *testing.T) {
	ts := setup(t)

	w := ts.post("/submit", url.Values{"email": {"a@example.com"}, "text": {"ai"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	_, err := ts.store.FindByEmail("a@example.com")
	assert.NoError(t, err)
}

func TestSignupWelcomeFailureStillSubscribes(t *testing.T) {
	ts := setup(t)
	ts.sender.err = errors.New("mail down")

	w := ts.post("/signup", url.Values{"email": {"a@example.com"}, "text": {"ai"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/success", w.Header().Get("Location"))
	_, err := ts.store.FindByEmail("a@example.com")
	assert.NoError(t, err)
}

func TestSignupValidation(t *testing.T) {
	tests := []struct {
		name    string
		form    url.Values
		message string
	}{
		{"missing email", url.Values{"text": {"ai"}}, "valid email"},
		{"malformed email", url.Values{"email": {"not-an-email"}, "text": {"ai"}}, "valid email"},
		{"empty topics", url.Values{"email": {"a@example.com"}, "text": {" , "}}, "at least one topic"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := setup(t)

			w := ts.post("/signup", tt.form)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), tt.message)

			stats, err := ts.store.Stats()
			require.NoError(t, err)
			assert.Zero(t, stats.Total)
			assert.Empty(t, ts.sender.sent)
		})
	}
}

func TestSignupDuplicateRedirectsToSameUser(t *testing.T) {
	ts := setup(t)
	_, err := ts.store.Create("a@example.com", "ai", models.Flags{})
	require.NoError(t, err)

	w := ts.post("/signup", url.Values{"email": {"A@example.com"}, "text": {"stocks"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/sameuser", w.Header().Get("Location"))
	assert.Empty(t, ts.sender.sent)

	sub, err := ts.store.FindByEmail("a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ai", sub.Topics)
}

func TestSameUser(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai", models.Flags{StockSuite: true})
	require.NoError(t, err)

	t.Run("without token", func(t *testing.T) {
		w := ts.get("/sameuser")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `action="/sameuser/resend"`)
	})

	t.Run("with token", func(t *testing.T) {
		w := ts.get("/sameuser?token=" + url.QueryEscape(sub.Token))
		assert.Equal(t, http.StatusOK, w.Code)
		body := w.Body.String()
		assert.Contains(t, body, "a@example.com")
		assert.Contains(t, body, "Insider trading")
		assert.Contains(t, body, "/unsubscribe?token=")
	})

	t.Run("bad token", func(t *testing.T) {
		w := ts.get("/sameuser?token=nope")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "invalid or has expired")
	})
}

func TestResendLinksAnswersTheSame(t *testing.T) {
	ts := setup(t)
	_, err := ts.store.Create("a@example.com", "ai", models.Flags{})
	require.NoError(t, err)

	known := ts.post("/sameuser/resend", url.Values{"email": {"a@example.com"}})
	unknown := ts.post("/sameuser/resend", url.Values{"email": {"b@example.com"}})

	assert.Equal(t, known.Code, unknown.Code)
	assert.Equal(t, known.Header().Get("Location"), unknown.Header().Get("Location"))

	knownPage := ts.get("/sameuser", known.Result().Cookies()...).Body.String()
	unknownPage := ts.get("/sameuser", unknown.Result().Cookies()...).Body.String()
	assert.Equal(t, knownPage, unknownPage)

	require.Len(t, ts.sender.sent, 1)
	assert.Equal(t, sentLink{Email: "a@example.com", Returning: true}, ts.sender.sent[0])
}

func TestUpdateForm(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai, bitcoin", models.Flags{BitcoinChart: true})
	require.NoError(t, err)

	w := ts.get("/update_info?token=" + url.QueryEscape(sub.Token))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="ai, bitcoin"`)
	assert.Contains(t, body, `name="include_bitcoin_chart" value="true" checked`)
	assert.NotContains(t, body, `name="include_sp500_chart" value="true" checked`)
}

func TestUpdateInfo(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai", models.Flags{BitcoinChart: true, MarketNews: true})
	require.NoError(t, err)

	w := ts.post("/update_info?token="+url.QueryEscape(sub.Token), url.Values{
		"text":                 {"stocks"},
		"include_nasdaq_chart": {"true"},
	})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/success", w.Header().Get("Location"))

	got, err := ts.store.FindByToken(sub.Token)
	require.NoError(t, err)
	assert.Equal(t, "stocks", got.Topics)
	assert.Equal(t, models.Flags{NasdaqChart: true}, got.Flags)
}

func TestUpdateInfoTokenInForm(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai", models.Flags{})
	require.NoError(t, err)

	w := ts.post("/update_info", url.Values{"token": {sub.Token}, "text": {"stocks"}})

	assert.Equal(t, http.StatusSeeOther, w.Code)
	got, err := ts.store.FindByToken(sub.Token)
	require.NoError(t, err)
	assert.Equal(t, "stocks", got.Topics)
}

func TestUpdateInfoEmptyTopics(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai", models.Flags{})
	require.NoError(t, err)

	w := ts.post("/update_info?token="+url.QueryEscape(sub.Token), url.Values{"text": {""}})

	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Contains(t, w.Header().Get("Location"), "/update_info?token=")

	page := ts.get(w.Header().Get("Location"), w.Result().Cookies()...)
	assert.Contains(t, page.Body.String(), "at least one topic")

	got, err := ts.store.FindByToken(sub.Token)
	require.NoError(t, err)
	assert.Equal(t, "ai", got.Topics)
}

func TestInvalidTokenPages(t *testing.T) {
	ts := setup(t)

	tests := []struct {
		name string
		do   func() *httptest.ResponseRecorder
	}{
		{"update form", func() *httptest.ResponseRecorder { return ts.get("/update_info?token=nope") }},
		{"update form without token", func() *httptest.ResponseRecorder { return ts.get("/update_info") }},
		{"update", func() *httptest.ResponseRecorder {
			return ts.post("/update_info?token=nope", url.Values{"text": {"ai"}})
		}},
		{"unsubscribe form", func() *httptest.ResponseRecorder { return ts.get("/unsubscribe?token=nope") }},
		{"unsubscribe", func() *httptest.ResponseRecorder { return ts.post("/unsubscribe?token=nope", nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := tt.do()
			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Contains(t, w.Body.String(), "invalid or has expired")
		})
	}
}

func TestUnsubscribe(t *testing.T) {
	ts := setup(t)
	sub, err := ts.store.Create("a@example.com", "ai", models.Flags{})
	require.NoError(t, err)
	target := "/unsubscribe?token=" + url.QueryEscape(sub.Token)

	form := ts.get(target)
	assert.Equal(t, http.StatusOK, form.Code)
	assert.Contains(t, form.Body.String(), "a@example.com")

	w := ts.post(target, nil)
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/success", w.Header().Get("Location"))

	_, err = ts.store.FindByEmail("a@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)

	again := ts.post(target, nil)
	assert.Equal(t, http.StatusNotFound, again.Code)
}

func TestGetStats(t *testing.T) {
	ts := setup(t)
	_, err := ts.store.Create("a@example.com", "ai", models.Flags{StockSuite: true})
	require.NoError(t, err)
	_, err = ts.store.Create("b@example.com", "ai", models.Flags{BitcoinChart: true})
	require.NoError(t, err)

	w := ts.get("/api/stats")

	require.Equal(t, http.StatusOK, w.Code)
	var stats store.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.EqualValues(t, 2, stats.Total)
	assert.EqualValues(t, 1, stats.StockSuite)
	assert.EqualValues(t, 1, stats.BitcoinChart)
}

func TestHealth(t *testing.T) {
	ts := setup(t)

	w := ts.get("/api/health")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}
