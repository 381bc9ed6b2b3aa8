package ledger

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/pishro-capital/ledger-core/internal/auth"
)

func newTestServer(t *testing.T) (*httptest.Server, *Service) {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(svc, NewReporter(svc, zap.NewNop().Sugar()), zap.NewNop().Sugar())

	mux := http.NewServeMux()
	mux.HandleFunc("POST /investments", h.CreateInvestment)
	mux.HandleFunc("GET /investments/{id}", h.GetInvestment)
	mux.HandleFunc("GET /investments/{id}/summary", h.PortfolioSummary)
	mux.HandleFunc("GET /investments/{id}/balance", h.BalanceAsOf)
	mux.HandleFunc("POST /investments/{id}/transactions", h.RecordTransaction)
	mux.HandleFunc("GET /investments/{id}/transactions", h.TransactionHistory)

	// a fixed actor, standing in for the auth middleware
	actor := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-Test-Anonymous") == "" {
				r = r.WithContext(auth.WithActor(r.Context(), 3))
			}
			next.ServeHTTP(w, r)
		})
	}
	srv := httptest.NewServer(actor(mux))
	t.Cleanup(srv.Close)
	return srv, svc
}

func doJSON(t *testing.T, method, url, body string, hdr map[string]string) (*http.Response, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp, out
}

func TestHandlerInvestmentLifecycle(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, srv.URL+"/investments", `{
		"user_id": 7,
		"contract_type": "variable_holding",
		"initial_amount": "1000000",
		"start_date": "2025-01-01"
	}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status=%d body=%v", resp.StatusCode, body)
	}
	id := int64(body["id"].(float64))

	resp, _ = doJSON(t, http.MethodGet, srv.URL+"/investments/999999", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("missing investment status=%d want 404", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodPost, srv.URL+"/investments", `{
		"user_id": 7,
		"contract_type": "fixed_rate",
		"initial_amount": "1000000",
		"start_date": "2025-01-01"
	}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("fixed rate without a rate: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, srvInvestmentPath(srv.URL, id)+"/summary", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status=%d", resp.StatusCode)
	}
	if body["current_value"] != "1000000" {
		t.Fatalf("current_value=%v want 1000000", body["current_value"])
	}
}

func TestHandlerRecordTransaction(t *testing.T) {
	srv, svc := newTestServer(t)
	inv := seedInvestment(t, svc, "1000000")
	url := srvInvestmentPath(srv.URL, inv.ID) + "/transactions"

	resp, body := doJSON(t, http.MethodPost, url, `{
		"type": "deposit",
		"amount": "500000",
		"transaction_date": "2025-02-01",
		"description": "wire received"
	}`, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("record status=%d body=%v", resp.StatusCode, body)
	}
	if body["recorded_by"].(float64) != 3 {
		t.Fatalf("recorded_by=%v want the request actor", body["recorded_by"])
	}

	// no actor on the context: the handler refuses before touching the ledger
	resp, _ = doJSON(t, http.MethodPost, url, `{"type":"deposit","amount":"1","transaction_date":"2025-02-01"}`,
		map[string]string{"X-Test-Anonymous": "1"})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous status=%d want 401", resp.StatusCode)
	}

	resp, _ = doJSON(t, http.MethodPost, url, `{"type":"deposit","amount":"-5","transaction_date":"2025-02-01"}`, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("negative amount status=%d want 400", resp.StatusCode)
	}

	resp, body = doJSON(t, http.MethodGet, url, "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("history status=%d", resp.StatusCode)
	}
	if body["total"].(float64) != 1 {
		t.Fatalf("total=%v want 1", body["total"])
	}
}

func TestHandlerBalanceAsOf(t *testing.T) {
	srv, svc := newTestServer(t)
	inv := seedInvestment(t, svc, "1000000")
	base := srvInvestmentPath(srv.URL, inv.ID) + "/balance"

	resp, _ := doJSON(t, http.MethodGet, base, "", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing as_of status=%d want 400", resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, base+"?as_of=2025-06-01", "", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("balance status=%d", resp.StatusCode)
	}
	if body["balance"] != "1000000" {
		t.Fatalf("balance=%v want 1000000", body["balance"])
	}
}

func srvInvestmentPath(base string, id int64) string {
	return base + "/investments/" + strconv.FormatInt(id, 10)
}
