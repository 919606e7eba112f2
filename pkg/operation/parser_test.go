package operation

import (
	"testing"

	"github.com/matzehuels/restoretrace/pkg/restorelog"
)

const (
	nugetOrg = "https://api.nuget.org/v3/index.json"
	flat     = "https://api.nuget.org/v3-flatcontainer"
)

func testParser() *Parser {
	return NewParser([]Source{
		{Name: nugetOrg, PackageBaseAddresses: []string{flat + "/"}},
		{Name: "https://pkgs.example.com/v3/index.json", PackageBaseAddresses: []string{"https://pkgs.example.com/flat"}},
	})
}

func get(url string) restorelog.StartRequest {
	return restorelog.StartRequest{Method: "GET", URL: url}
}

func TestParseClassification(t *testing.T) {
	tests := []struct {
		name string
		req  restorelog.StartRequest
		want *Operation
	}{
		{
			name: "index",
			req:  get(flat + "/newtonsoft.json/index.json"),
			want: &Operation{Type: PackageBaseAddressIndex, ID: "newtonsoft.json"},
		},
		{
			name: "nupkg",
			req:  get(flat + "/newtonsoft.json/9.0.1-beta/newtonsoft.json.9.0.1-beta.nupkg"),
			want: &Operation{Type: PackageBaseAddressNupkg, ID: "newtonsoft.json", Version: "9.0.1-beta"},
		},
		{
			name: "nupkg with revision",
			req:  get(flat + "/a/1.2.3.4/a.1.2.3.4.nupkg"),
			want: &Operation{Type: PackageBaseAddressNupkg, ID: "a", Version: "1.2.3.4"},
		},
		{
			name: "second source",
			req:  get("https://pkgs.example.com/flat/b/index.json"),
			want: &Operation{Type: PackageBaseAddressIndex, SourceIndex: 1, ID: "b"},
		},
		{
			name: "wrong case in nupkg",
			req:  get(flat + "/Newtonsoft.Json/9.0.1-beta/Newtonsoft.Json.9.0.1-beta.nupkg"),
		},
		{
			name: "wrong case in file name only",
			req:  get(flat + "/newtonsoft.json/9.0.1-beta/Newtonsoft.Json.9.0.1-beta.nupkg"),
		},
		{
			name: "wrong case in index",
			req:  get(flat + "/Newtonsoft.Json/index.json"),
		},
		{
			name: "uppercase prerelease",
			req:  get(flat + "/a/1.0.0-Beta/a.1.0.0-Beta.nupkg"),
		},
		{
			name: "post to index",
			req:  restorelog.StartRequest{Method: "POST", URL: flat + "/newtonsoft.json/index.json"},
		},
		{
			name: "mismatched version in file name",
			req:  get(flat + "/a/1.0.0/a.1.0.1.nupkg"),
		},
		{
			name: "mismatched id in file name",
			req:  get(flat + "/a/1.0.0/b.1.0.0.nupkg"),
		},
		{
			name: "non-normalized version",
			req:  get(flat + "/a/1.0.0.0/a.1.0.0.0.nupkg"),
		},
		{
			name: "leading zero version",
			req:  get(flat + "/a/01.0.0/a.01.0.0.nupkg"),
		},
		{
			name: "extra segment",
			req:  get(flat + "/a/1.0.0/extra/a.1.0.0.nupkg"),
		},
		{
			name: "missing segment",
			req:  get(flat + "/index.json"),
		},
		{
			name: "query string",
			req:  get(flat + "/a/index.json?x=1"),
		},
		{
			name: "service index",
			req:  get(nugetOrg),
		},
		{
			name: "unknown host",
			req:  get("https://elsewhere.example.com/a/index.json"),
		},
	}

	p := testParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := p.Parse(tt.req)
			if info.Request != tt.req {
				t.Errorf("Request = %+v, want %+v", info.Request, tt.req)
			}
			switch {
			case tt.want == nil && info.Operation != nil:
				t.Errorf("Operation = %v, want unknown", *info.Operation)
			case tt.want != nil && info.Operation == nil:
				t.Errorf("Operation = unknown, want %v", *tt.want)
			case tt.want != nil && *info.Operation != *tt.want:
				t.Errorf("Operation = %v, want %v", *info.Operation, *tt.want)
			}
		})
	}
}

func TestParseSourceResourceURIs(t *testing.T) {
	p := NewParser([]Source{
		{Name: "a", PackageBaseAddresses: []string{"https://x/flat/"}},
		{Name: "b", PackageBaseAddresses: []string{"https://x/flat"}},
	})
	info := p.Parse(get("https://x/flat/pkg/index.json"))
	if len(info.SourceResourceURIs) != 2 {
		t.Fatalf("SourceResourceURIs = %v, want 2 entries", info.SourceResourceURIs)
	}
	if info.SourceResourceURIs[0].Source != "a" {
		t.Errorf("first match = %q, want a", info.SourceResourceURIs[0].Source)
	}
	if info.Operation == nil || info.Operation.SourceIndex != 0 {
		t.Errorf("Operation = %v, want source index 0", info.Operation)
	}
}

func TestOperationEquality(t *testing.T) {
	a := NewNupkg(0, "a", "1.0.0")
	b := NewNupkg(0, "a", "1.0.0")
	if a != b {
		t.Error("operations with equal fields should be equal")
	}
	if NewIndex(0, "a") == NewIndex(1, "a") {
		t.Error("operations on different sources should differ")
	}
	if NewIndex(0, "a") == NewNupkg(0, "a", "") {
		t.Error("operations of different types should differ")
	}
}

func TestOperationURLRoundTrip(t *testing.T) {
	p := testParser()
	ops := []Operation{
		NewIndex(0, "newtonsoft.json"),
		NewNupkg(0, "newtonsoft.json", "13.0.3"),
	}
	for _, op := range ops {
		url, err := op.URL(flat)
		if err != nil {
			t.Fatalf("URL() error = %v", err)
		}
		info := p.Parse(get(url))
		if info.Operation == nil || *info.Operation != op {
			t.Errorf("Parse(%s) = %v, want %v", url, info.Operation, op)
		}
	}
	if _, err := (Operation{}).URL(flat); err == nil {
		t.Error("URL() of zero operation should fail")
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range []Type{PackageBaseAddressIndex, PackageBaseAddressNupkg} {
		got, ok := ParseType(typ.String())
		if !ok || got != typ {
			t.Errorf("ParseType(%q) = (%v, %v)", typ.String(), got, ok)
		}
	}
	if _, ok := ParseType("Search"); ok {
		t.Error("ParseType(Search) should fail")
	}
}

func TestIsNormalizedVersion(t *testing.T) {
	tests := map[string]bool{
		"1.0.0":          true,
		"9.0.1-beta":     true,
		"1.0.0-rc.1":     true,
		"1.2.3.4":        true,
		"1.0":            false,
		"1.0.0.0":        false,
		"1.0.0+sha":      false,
		"1.0.0-Beta":     false,
		"1.0.0-":         false,
		"1.0.0-beta..1":  false,
		"v1.0.0":         false,
		"00.1.0":         false,
		"1.0.0-beta-two": true,
	}
	for v, want := range tests {
		if got := IsNormalizedVersion(v); got != want {
			t.Errorf("IsNormalizedVersion(%q) = %v, want %v", v, got, want)
		}
	}
}
