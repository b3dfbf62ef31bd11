package product

import (
	"errors"
	"testing"
)

func TestParseProductCode(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{
			name: "desktop url",
			url:  "https://www.11st.co.kr/products/1122334455",
			want: "1122334455",
		},
		{
			name: "mobile url",
			url:  "https://m.11st.co.kr/products/9876543210",
			want: "9876543210",
		},
		{
			name: "bare host",
			url:  "http://11st.co.kr/products/55667788",
			want: "55667788",
		},
		{
			name: "ma path variant",
			url:  "https://www.11st.co.kr/products/ma/1122334455",
			want: "1122334455",
		},
		{
			name: "pa path variant",
			url:  "https://m.11st.co.kr/products/pa/1122334455",
			want: "1122334455",
		},
		{
			name: "trailing query and fragment",
			url:  "https://www.11st.co.kr/products/1122334455?trTypeCd=22&tr=share#top",
			want: "1122334455",
		},
		{
			name:    "wrong host",
			url:     "https://www.example.com/products/1122334455",
			wantErr: true,
		},
		{
			name:    "no product code",
			url:     "https://www.11st.co.kr/products/",
			wantErr: true,
		},
		{
			name:    "leading zero code",
			url:     "https://www.11st.co.kr/products/0123",
			wantErr: true,
		},
		{
			name:    "not a url",
			url:     "샀다",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProductCode(tt.url)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("err = %v, want ErrInvalidURL", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseProductCode: %v", err)
			}
			if got != tt.want {
				t.Errorf("code = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestShareURL(t *testing.T) {
	got := ShareURL("1122334455")
	want := "http://www.11st.co.kr/products/1122334455/share"
	if got != want {
		t.Errorf("ShareURL = %q, want %q", got, want)
	}
}
