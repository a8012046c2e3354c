package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/datatrace/osint-backend/internal/domain"
	"github.com/datatrace/osint-backend/internal/services"
)

// fakeUserService scripts the account surface.
type fakeUserService struct {
	user    *domain.User
	created bool
	err     error

	redeemKind   string
	redeemAmount int64
	redeemErr    error

	history    []domain.QueryRecord
	historyN   int64
	historyErr error

	gotPage, gotPageSize int
}

func (f *fakeUserService) Register(ctx context.Context, id int64, username, firstName string, referrerID *int64) (*domain.User, bool, error) {
	return f.user, f.created, f.err
}

func (f *fakeUserService) Get(ctx context.Context, id int64) (*domain.User, error) {
	return f.user, f.err
}

func (f *fakeUserService) Redeem(ctx context.Context, userID int64, code string) (string, int64, error) {
	return f.redeemKind, f.redeemAmount, f.redeemErr
}

func (f *fakeUserService) History(ctx context.Context, userID int64, page, pageSize int) ([]domain.QueryRecord, int64, error) {
	f.gotPage, f.gotPageSize = page, pageSize
	return f.history, f.historyN, f.historyErr
}

func userRouter(svc UserService) *gin.Engine {
	r := gin.New()
	h := New(nil, svc, nil, nil)
	r.POST("/users", h.Register)
	r.GET("/users/:id", h.GetUser)
	r.GET("/users/:id/queries", h.History)
	r.POST("/redeem", h.Redeem)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		rd = bytes.NewReader(raw)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterHandler(t *testing.T) {
	svc := &fakeUserService{user: &domain.User{ID: 9, Username: "alice"}, created: true}
	r := userRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/users", RegisterRequest{ID: 9, Username: "alice"})
	if w.Code != http.StatusCreated {
		t.Fatalf("created: status = %d", w.Code)
	}

	svc.created = false
	w = doJSON(t, r, http.MethodPost, "/users", RegisterRequest{ID: 9})
	if w.Code != http.StatusOK {
		t.Fatalf("existing: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/users", map[string]any{"username": "noid"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("missing id: status = %d", w.Code)
	}
}

func TestGetUserHandler(t *testing.T) {
	r := userRouter(&fakeUserService{user: &domain.User{ID: 9}})
	w := doJSON(t, r, http.MethodGet, "/users/9", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}

	r = userRouter(&fakeUserService{err: services.ErrUserNotFound})
	w = doJSON(t, r, http.MethodGet, "/users/9", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, "/users/abc", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status = %d", w.Code)
	}
}

func TestHistoryHandler_Pagination(t *testing.T) {
	svc := &fakeUserService{
		history:  []domain.QueryRecord{{ID: "q1"}, {ID: "q2"}},
		historyN: 5,
	}
	r := userRouter(svc)

	w := doJSON(t, r, http.MethodGet, "/users/9/queries?page=2&page_size=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp HistoryResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Pagination.Total != 5 || resp.Pagination.TotalPages != 3 || !resp.Pagination.HasNext {
		t.Fatalf("pagination = %+v", resp.Pagination)
	}

	// Out-of-bounds parameters are clamped before the service sees them.
	doJSON(t, r, http.MethodGet, "/users/9/queries?page=-3&page_size=5000", nil)
	if svc.gotPage != 1 || svc.gotPageSize != 100 {
		t.Fatalf("clamped to page=%d size=%d", svc.gotPage, svc.gotPageSize)
	}

	r = userRouter(&fakeUserService{historyErr: services.ErrUserNotFound})
	w = doJSON(t, r, http.MethodGet, "/users/9/queries", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown user: status = %d", w.Code)
	}
}

func TestRedeemHandler(t *testing.T) {
	svc := &fakeUserService{redeemKind: domain.CodeKindCredits, redeemAmount: 10}
	r := userRouter(svc)

	w := doJSON(t, r, http.MethodPost, "/redeem", RedeemRequest{UserID: 9, Code: "WELCOME1"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp RedeemResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Kind != domain.CodeKindCredits || resp.Amount != 10 {
		t.Fatalf("payout = %+v", resp)
	}

	cases := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{services.ErrUserNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrInvalidCode, http.StatusBadRequest, ErrCodeInvalidCode},
		{services.ErrCodeUsed, http.StatusConflict, ErrCodeCodeUsed},
	}
	for _, tc := range cases {
		r := userRouter(&fakeUserService{redeemErr: tc.err})
		w := doJSON(t, r, http.MethodPost, "/redeem", RedeemRequest{UserID: 9, Code: "X"})
		if w.Code != tc.wantStatus {
			t.Fatalf("%v: status = %d; want %d", tc.err, w.Code, tc.wantStatus)
		}
		if e := decodeError(t, w); e.Code != tc.wantCode {
			t.Fatalf("%v: code = %q; want %q", tc.err, e.Code, tc.wantCode)
		}
	}
}
