package cache

import (
	"net/url"
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "endpoint only",
			key:  Key{Endpoint: "/config"},
			want: "px:config",
		},
		{
			name: "endpoint with lang",
			key: Key{
				Endpoint:    "/tables/TAB1267/metadata",
				QueryParams: url.Values{"lang": []string{"sv"}},
			},
			want: "px:tables/TAB1267/metadata:lang=sv",
		},
		{
			name: "query params sorted",
			key: Key{
				Endpoint: "/tables",
				QueryParams: url.Values{
					"query":    []string{"befolkning"},
					"lang":     []string{"en"},
					"pastDays": []string{"30"},
				},
			},
			want: "px:tables:lang=en:pastDays=30:query=befolkning",
		},
		{
			name: "empty endpoint",
			key:  Key{Endpoint: "/"},
			want: "px",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{
		Endpoint: "/navigation/BE",
		QueryParams: url.Values{
			"lang":     []string{"sv"},
			"pageSize": []string{"5000"},
		},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q vs %q", got, first)
		}
	}
}
