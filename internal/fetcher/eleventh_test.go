package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/text/encoding/korean"
	"golang.org/x/text/transform"
)

// eucKR re-encodes a UTF-8 XML document the way the 11st API serves it.
func eucKR(t *testing.T, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(korean.EUCKR.NewEncoder(), []byte(s))
	if err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return out
}

const productInfoXML = `<?xml version="1.0" encoding="euc-kr"?>
<ProductInfoResponse>
	<Product>
		<ProductCode>1234567890</ProductCode>
		<ProductName>게이밍 모니터 27인치</ProductName>
		<ProductPrice>
			<LowestPrice>249,000원</LowestPrice>
		</ProductPrice>
		<BasicImage>http://image.11st.kr/product/1234567890.jpg</BasicImage>
		<SaleStatus>판매중</SaleStatus>
	</Product>
</ProductInfoResponse>`

func TestFetchParsesEUCKRResponse(t *testing.T) {
	body := eucKR(t, productInfoXML)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("key"); got != "test-key" {
			t.Errorf("key = %q, want test-key", got)
		}
		if got := r.URL.Query().Get("productCode"); got != "1234567890" {
			t.Errorf("productCode = %q, want 1234567890", got)
		}
		w.Header().Set("Content-Type", "text/xml; charset=euc-kr")
		w.Write(body)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "test-key", 600, nil)
	p, err := c.Fetch(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if p.Code != "1234567890" {
		t.Errorf("code = %q", p.Code)
	}
	if p.Name != "게이밍 모니터 27인치" {
		t.Errorf("name = %q", p.Name)
	}
	if p.Price != 249000 {
		t.Errorf("price = %d, want 249000", p.Price)
	}
	if p.IsSoldOut {
		t.Error("product on sale reported as sold out")
	}
	if p.ImageURL != "http://image.11st.kr/product/1234567890.jpg" {
		t.Errorf("image = %q", p.ImageURL)
	}
}

func TestFetchSoldOutStatus(t *testing.T) {
	body := eucKR(t, strings.Replace(productInfoXML, "판매중", "품절", 1))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml; charset=euc-kr")
		w.Write(body)
	}))
	defer srv.Close()

	p, err := NewClient(srv.URL, "test-key", 600, nil).Fetch(context.Background(), "1234567890")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !p.IsSoldOut {
		t.Error("품절 status not reported as sold out")
	}
}

func TestFetchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key", 600, nil).Fetch(context.Background(), "1234567890")
	if err == nil {
		t.Fatal("expected error on 403 response")
	}
	if !strings.Contains(err.Error(), "403") {
		t.Errorf("error does not carry status: %v", err)
	}
}

func TestFetchEmptyResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?><ProductInfoResponse></ProductInfoResponse>`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "test-key", 600, nil).Fetch(context.Background(), "404code")
	if err == nil {
		t.Fatal("expected error for response without product")
	}
}

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "249,000원", want: 249000},
		{in: "1,234원", want: 1234},
		{in: "500", want: 500},
		{in: " 12,345 원 ", want: 12345},
		{in: "0원", want: 0},
		{in: "", wantErr: true},
		{in: "가격미정", wantErr: true},
		{in: "-100원", wantErr: true},
	}

	for _, tt := range tests {
		got, err := parsePrice(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("parsePrice(%q) = %d, want error", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePrice(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("parsePrice(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
