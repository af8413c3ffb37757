package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"example.com/ai-shopmate/backend/internal/auth"
	"example.com/ai-shopmate/backend/internal/budget"
	"example.com/ai-shopmate/backend/internal/models"
	"example.com/ai-shopmate/backend/internal/notifications"
	"example.com/ai-shopmate/backend/internal/repository"
)

func newTestContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func testLines() []models.CartLine {
	added := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return []models.CartLine{
		{
			Item:    models.CartItem{ProductID: "5", Quantity: 2, AddedAt: added},
			Product: models.Product{ID: "5", Name: "Wireless Headphones", Price: 249, Category: "electronics"},
		},
		{
			Item:    models.CartItem{ProductID: "22", Quantity: 1, AddedAt: added},
			Product: models.Product{ID: "22", Name: "Indoor Plant Set", Price: 49.5, Category: "home"},
		},
		{
			Item:    models.CartItem{ProductID: "3", Quantity: 1, AddedAt: added},
			Product: models.Product{ID: "3", Name: "Circuit Board Kit", Price: 79, Category: "electronics"},
		},
	}
}

// TestBudgetErrorMapping проверяет ответы на ошибки гейта бюджета.
func TestBudgetErrorMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{err: budget.ErrBudgetExceeded, status: http.StatusBadRequest, message: "budget exceeded"},
		{err: repository.ErrBudgetExceeded, status: http.StatusBadRequest, message: "budget exceeded"},
		{err: fmt.Errorf("add: %w", budget.ErrBudgetExceeded), status: http.StatusBadRequest, message: "budget exceeded"},
		{err: budget.ErrInvalidAmount, status: http.StatusBadRequest, message: "invalid amount"},
		{err: repository.ErrInvalid, status: http.StatusBadRequest, message: "invalid amount"},
		{err: repository.ErrEmptyCart, status: http.StatusBadRequest, message: "cart is empty"},
		{err: repository.ErrNotFound, status: http.StatusNotFound, message: "product not found"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, message: "internal server error"},
	}

	for _, tc := range cases {
		c, rec := newTestContext(http.MethodPost, "/")
		if err := budgetError(c, tc.err); err != nil {
			t.Fatalf("budgetError(%v) returned %v", tc.err, err)
		}
		if rec.Code != tc.status {
			t.Fatalf("budgetError(%v) status = %d, want %d", tc.err, rec.Code, tc.status)
		}

		var body ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Error != tc.message {
			t.Fatalf("budgetError(%v) message = %q, want %q", tc.err, body.Error, tc.message)
		}
	}
}

// TestSummarizeCart проверяет подсчет единиц товара и суммы корзины.
func TestSummarizeCart(t *testing.T) {
	items, total := summarizeCart(testLines())
	if items != 4 {
		t.Fatalf("items = %d, want 4", items)
	}
	if total != 626.5 {
		t.Fatalf("total = %v, want 626.5", total)
	}

	items, total = summarizeCart(nil)
	if items != 0 || total != 0 {
		t.Fatalf("empty cart = (%d, %v), want (0, 0)", items, total)
	}
}

// TestToBudgetResponse проверяет расчет потраченного и доступного остатка.
func TestToBudgetResponse(t *testing.T) {
	updated := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	state := models.BudgetState{Total: 1000, Remaining: 700, UpdatedAt: updated}

	got := toBudgetResponse(state, 200, "USD")
	want := BudgetResponse{
		Total:     1000,
		Remaining: 700,
		Spent:     300,
		CartTotal: 200,
		Available: 500,
		Currency:  "USD",
		UpdatedAt: "2024-05-01T10:00:00Z",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("response mismatch (-want +got):\n%s", diff)
	}

	over := toBudgetResponse(models.BudgetState{Total: 100, Remaining: 50}, 80, "USD")
	if over.Available != 0 {
		t.Fatalf("available = %v, want 0 when cart exceeds remaining", over.Available)
	}
	if over.UpdatedAt != "" {
		t.Fatalf("updated_at = %q, want empty for zero time", over.UpdatedAt)
	}
}

// TestNormalizePreferences проверяет нормализацию категорий.
func TestNormalizePreferences(t *testing.T) {
	got := normalizePreferences([]string{" Electronics ", "fashion", "", "ELECTRONICS", "home"})
	want := []string{"electronics", "fashion", "home"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("preferences mismatch (-want +got):\n%s", diff)
	}

	if got := normalizePreferences(nil); len(got) != 0 {
		t.Fatalf("expected empty preferences, got %v", got)
	}
}

// TestParseRecommendLimit проверяет разбор лимита рекомендаций.
func TestParseRecommendLimit(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 4},
		{raw: "2", want: 2},
		{raw: "10", want: 4},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "abc", wantErr: true},
	}

	for _, tc := range cases {
		got, err := parseRecommendLimit(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseRecommendLimit(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseRecommendLimit(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseRecommendLimit(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}

// TestParsePagination проверяет разбор limit и offset.
func TestParsePagination(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/?limit=500&offset=20")
	limit, offset, err := parsePagination(c, 50, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if limit != 200 || offset != 20 {
		t.Fatalf("got limit=%d offset=%d, want 200 and 20", limit, offset)
	}

	c, _ = newTestContext(http.MethodGet, "/?offset=-1")
	if _, _, err := parsePagination(c, 50, 200); err == nil {
		t.Fatal("expected error for negative offset")
	}
}

// TestWriteCartCSV проверяет построчную выгрузку корзины.
func TestWriteCartCSV(t *testing.T) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writeCartCSV(writer, testLines()[:1], "USD"); err != nil {
		t.Fatalf("writeCartCSV: %v", err)
	}
	writer.Flush()

	want := "product_id,name,category,price,quantity,subtotal,currency,added_at\n" +
		"5,Wireless Headphones,electronics,249.00,2,498.00,USD,2024-05-01T10:00:00Z\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

// TestWriteCategoriesCSV проверяет группировку корзины по категориям.
func TestWriteCategoriesCSV(t *testing.T) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writeCategoriesCSV(writer, testLines(), "USD"); err != nil {
		t.Fatalf("writeCategoriesCSV: %v", err)
	}
	writer.Flush()

	want := "category,items,subtotal,currency\n" +
		"electronics,3,577.00,USD\n" +
		"home,1,49.50,USD\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Fatalf("csv mismatch (-want +got):\n%s", diff)
	}
}

type fakePinger struct {
	err error
}

func (p fakePinger) Ping(context.Context) error {
	return p.err
}

// TestHealth проверяет статус сервиса при доступной и недоступной базе.
func TestHealth(t *testing.T) {
	cases := []struct {
		name   string
		db     Pinger
		status int
		body   HealthResponse
	}{
		{name: "no database", db: nil, status: http.StatusOK, body: HealthResponse{Status: "ok"}},
		{name: "database ok", db: fakePinger{}, status: http.StatusOK, body: HealthResponse{Status: "ok", Database: "ok"}},
		{name: "database down", db: fakePinger{err: errors.New("down")}, status: http.StatusServiceUnavailable, body: HealthResponse{Status: "degraded", Database: "unavailable"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, rec := newTestContext(http.MethodGet, "/health")
			if err := NewHealthHandler(tc.db).Health(c); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d", rec.Code, tc.status)
			}

			var got HealthResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if diff := cmp.Diff(tc.body, got); diff != "" {
				t.Fatalf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestPublishUpdates проверяет события бюджета и корзины для подписчика.
func TestPublishUpdates(t *testing.T) {
	hub := notifications.NewHub()
	userID := uuid.New()
	ch, unsubscribe := hub.Subscribe(userID)
	defer unsubscribe()

	publishBudgetUpdate(hub, userID, models.BudgetState{Total: 1000, Remaining: 600}, 150)
	publishCartUpdate(hub, userID, testLines())

	event := <-ch
	if event.Type != notifications.EventBudgetUpdated {
		t.Fatalf("event type = %q, want %q", event.Type, notifications.EventBudgetUpdated)
	}
	wantBudget := notifications.BudgetUpdate{Total: 1000, Remaining: 600, Spent: 400, CartTotal: 150}
	if diff := cmp.Diff(wantBudget, event.Data); diff != "" {
		t.Fatalf("budget payload mismatch (-want +got):\n%s", diff)
	}

	event = <-ch
	if event.Type != notifications.EventCartUpdated {
		t.Fatalf("event type = %q, want %q", event.Type, notifications.EventCartUpdated)
	}
	wantCart := notifications.CartUpdate{Items: 4, CartTotal: 626.5}
	if diff := cmp.Diff(wantCart, event.Data); diff != "" {
		t.Fatalf("cart payload mismatch (-want +got):\n%s", diff)
	}

	publishBudgetUpdate(nil, userID, models.BudgetState{}, 0)
	publishCartUpdate(nil, userID, nil)
}

// TestWriteSSE проверяет формат SSE-события.
func TestWriteSSE(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/stream")
	event := notifications.Event{
		Type: notifications.EventCartUpdated,
		Data: notifications.CartUpdate{Items: 1, CartTotal: 49},
	}

	if err := writeSSE(c, event); err != nil {
		t.Fatalf("writeSSE: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: cart_updated\ndata: ") {
		t.Fatalf("unexpected sse prefix: %q", body)
	}

	c, rec = newTestContext(http.MethodGet, "/stream")
	event.ID = 7
	if err := writeSSE(c, event); err != nil {
		t.Fatalf("writeSSE: %v", err)
	}
	if !strings.HasPrefix(rec.Body.String(), "id: 7\nevent: cart_updated\n") {
		t.Fatalf("expected id line, got %q", rec.Body.String())
	}
	body = rec.Body.String()
	if !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("sse event must end with a blank line: %q", body)
	}
	if !strings.Contains(body, `"cart_total":49`) {
		t.Fatalf("sse payload missing cart total: %q", body)
	}
}

// TestToCartSnapshots проверяет снимок корзины для ассистента.
func TestToCartSnapshots(t *testing.T) {
	got := toCartSnapshots(testLines()[:1])
	if len(got) != 1 {
		t.Fatalf("expected 1 snapshot, got %d", len(got))
	}
	if got[0].ProductID != "5" || got[0].Quantity != 2 || got[0].Price != 249 {
		t.Fatalf("unexpected snapshot: %+v", got[0])
	}
}

// TestAuthUserWithoutProfiles проверяет ответ без репозитория анкет.
func TestAuthUserWithoutProfiles(t *testing.T) {
	name := "Ann"
	user := models.User{ID: uuid.New(), Email: "ann@example.com", Name: &name}

	got, err := (&AuthHandler{}).authUser(context.Background(), user)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := AuthUser{ID: user.ID, Email: user.Email, Name: &name}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("user mismatch (-want +got):\n%s", diff)
	}
}

// TestParseAIRequestQuery проверяет фильтры журнала AI-запросов.
func TestParseAIRequestQuery(t *testing.T) {
	userID := uuid.New()
	c, _ := newTestContext(http.MethodGet, "/?user_id="+userID.String()+"&success=false&request_type=Chat&include_payloads=1")

	filter, include, err := parseAIRequestQuery(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !include {
		t.Fatal("expected payloads to be included")
	}
	if filter.UserID == nil || *filter.UserID != userID {
		t.Fatalf("unexpected user filter: %v", filter.UserID)
	}
	if filter.Success == nil || *filter.Success {
		t.Fatalf("unexpected success filter: %v", filter.Success)
	}
	if filter.RequestType == nil || *filter.RequestType != repository.AIRequestChat {
		t.Fatalf("unexpected request type filter: %v", filter.RequestType)
	}

	for _, query := range []string{"/?user_id=nope", "/?success=maybe", "/?request_type=plan", "/?include_payloads=x"} {
		c, _ := newTestContext(http.MethodGet, query)
		if _, _, err := parseAIRequestQuery(c); err == nil {
			t.Fatalf("expected error for %s", query)
		}
	}
}

// TestToAIRequestResponseHidesPayloads проверяет, что тексты запросов отдаются только по флагу.
func TestToAIRequestResponseHidesPayloads(t *testing.T) {
	prompt := "pick products"
	record := repository.AIRequestRecord{
		ID:             uuid.New(),
		RequestType:    repository.AIRequestSuggest,
		Prompt:         &prompt,
		RequestPayload: []byte(`{"goal":"gift"}`),
		Success:        true,
	}

	hidden := toAIRequestResponse(record, false)
	if hidden.Prompt != nil || hidden.RequestPayload != nil {
		t.Fatalf("expected payloads to be hidden: %+v", hidden)
	}

	shown := toAIRequestResponse(record, true)
	if shown.Prompt == nil || *shown.Prompt != prompt {
		t.Fatalf("expected prompt, got %v", shown.Prompt)
	}
	if string(shown.RequestPayload) != `{"goal":"gift"}` {
		t.Fatalf("unexpected payload %s", shown.RequestPayload)
	}
	if shown.ResponsePayload != nil {
		t.Fatalf("expected empty response payload, got %s", shown.ResponsePayload)
	}
}

// TestRefreshRecord проверяет, что в базу попадает только хэш refresh-токена.
func TestRefreshRecord(t *testing.T) {
	manager := auth.NewTokenManager("secret", "ai-shopmate", time.Minute, time.Hour)
	userID := uuid.New()
	pair, err := manager.NewTokenPair(userID)
	if err != nil {
		t.Fatalf("new pair: %v", err)
	}

	record := refreshRecord(userID, pair)
	if record.ID != pair.RefreshID || record.UserID != userID {
		t.Fatalf("unexpected record ids: %+v", record)
	}
	if record.TokenHash == pair.Refresh.Token || !auth.CompareTokenHash(record.TokenHash, pair.Refresh.Token) {
		t.Fatal("expected sha256 of refresh token")
	}
	if !record.ExpiresAt.Equal(pair.Refresh.ExpiresAt) {
		t.Fatalf("expected expiry %v, got %v", pair.Refresh.ExpiresAt, record.ExpiresAt)
	}
}

// TestNotificationStream проверяет доставку события в открытый SSE-поток.
func TestNotificationStream(t *testing.T) {
	hub := notifications.NewHub()
	handler := NewNotificationHandler(hub)
	userID := uuid.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/notifications/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(auth.ContextUserIDKey, userID)

	done := make(chan error, 1)
	go func() { done <- handler.Stream(c) }()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(userID) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream did not subscribe")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Close()
	if err := <-done; err != nil {
		t.Fatalf("stream returned error: %v", err)
	}

	if rec.Header().Get(echo.HeaderContentType) != "text/event-stream" {
		t.Fatalf("unexpected content type %q", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.HasPrefix(rec.Body.String(), "event: connected\n") {
		t.Fatalf("expected connected event first, got %q", rec.Body.String())
	}
}

type bindTestRequest struct {
	Amount *float64 `json:"amount" validate:"required"`
}

type bindTestValidator struct{}

func (bindTestValidator) Validate(i interface{}) error {
	req := i.(*bindTestRequest)
	if req.Amount == nil {
		return errors.New("amount is required")
	}
	return nil
}

// TestBindRequest проверяет ошибки разбора и валидации тела запроса.
func TestBindRequest(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{body: `{"amount": 10}`, want: ""},
		{body: `{"amount": "ten"}`, want: "invalid payload"},
		{body: `{}`, want: "validation failed"},
	}

	for _, tc := range cases {
		e := echo.New()
		e.Validator = bindTestValidator{}
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		var got bindTestRequest
		err := bindRequest(c, &got)
		if tc.want == "" {
			if err != nil {
				t.Fatalf("%s: unexpected error %v", tc.body, err)
			}
			continue
		}
		if err == nil || err.Error() != tc.want {
			t.Fatalf("%s: error = %v, want %q", tc.body, err, tc.want)
		}
	}
}

// TestParseBoundedInt проверяет значения по умолчанию и верхнюю границу.
func TestParseBoundedInt(t *testing.T) {
	if got, err := parseBoundedInt(" ", "days", 7, 30); err != nil || got != 7 {
		t.Fatalf("empty: got %d, %v", got, err)
	}
	if got, err := parseBoundedInt("90", "days", 7, 30); err != nil || got != 30 {
		t.Fatalf("clamp: got %d, %v", got, err)
	}
	if _, err := parseBoundedInt("0", "days", 7, 30); err == nil || err.Error() != "invalid days" {
		t.Fatalf("expected invalid days, got %v", err)
	}
}

// TestEmailSet проверяет сравнение email без учета регистра и пробелов.
func TestEmailSet(t *testing.T) {
	set := newEmailSet([]string{" Admin@Shop.io ", ""})
	if set.empty() {
		t.Fatal("expected one email")
	}
	if !set.has("admin@shop.io") {
		t.Fatal("expected case-insensitive match")
	}
	if set.has("user@shop.io") {
		t.Fatal("unexpected match")
	}
	if !newEmailSet(nil).empty() {
		t.Fatal("expected empty set")
	}
}

type acceptValidator struct{}

func (acceptValidator) Validate(interface{}) error { return nil }

func newJSONContext(body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = acceptValidator{}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set(auth.ContextUserIDKey, uuid.New())
	return c, rec
}

// TestBudgetRejectsOversizedAmount проверяет отказ до обращения к базе.
func TestBudgetRejectsOversizedAmount(t *testing.T) {
	h := &BudgetHandler{}

	for name, handle := range map[string]echo.HandlerFunc{"set": h.Set, "spend": h.Spend} {
		c, rec := newJSONContext(`{"amount": 1e15}`)
		if err := handle(c); err != nil {
			t.Fatalf("%s: unexpected error %v", name, err)
		}
		if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid amount") {
			t.Fatalf("%s: got %d %s", name, rec.Code, rec.Body.String())
		}
	}
}

// TestOnboardingRejectsOversizedBudget проверяет, что онбординг не пишет ничего при неверном бюджете.
func TestOnboardingRejectsOversizedBudget(t *testing.T) {
	h := &ProfileHandler{}
	c, rec := newJSONContext(`{"age": 30, "gender": "female", "budget": 1e15, "category": "electronics"}`)

	if err := h.Onboarding(c); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "invalid amount") {
		t.Fatalf("got %d %s", rec.Code, rec.Body.String())
	}
}

func TestOnboardingUpdate(t *testing.T) {
	update := onboardingUpdate(OnboardingRequest{
		Age:           30,
		Gender:        " female ",
		ContactNumber: "  ",
		Budget:        500,
		Category:      " Electronics ",
	})

	if update.Age == nil || *update.Age != 30 {
		t.Fatalf("unexpected age %v", update.Age)
	}
	if update.Gender == nil || *update.Gender != "female" {
		t.Fatalf("unexpected gender %v", update.Gender)
	}
	if update.ContactNumber != nil {
		t.Fatalf("expected blank contact to stay unset, got %q", *update.ContactNumber)
	}
	if diff := cmp.Diff([]string{"electronics"}, update.Preferences); diff != "" {
		t.Fatalf("preferences mismatch (-want +got):\n%s", diff)
	}
}
