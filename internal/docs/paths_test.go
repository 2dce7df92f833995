package docs

import (
	"reflect"
	"testing"
)

func TestServantPath(t *testing.T) {
	got := ServantPath("CityA", "João Silva")
	want := []string{"CityA", "Servidores J", "João Silva"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFinancialPath(t *testing.T) {
	got := FinancialPath("CityA", "Balancete", 2024, "1º Trimestre")
	want := []string{"CityA", "Documentações Financeiras", "Balancete", "2024", "1º Trimestre"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestBucketLetter(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"João Silva", "J"},
		{"maria souza", "M"},
		{"Ângela Costa", "A"},
		{"Érica", "E"},
		{"  Pedro", "P"},
		{"123 Ltda", "#"},
		{"", "#"},
	}
	for _, c := range cases {
		if got := bucketLetter(c.name); got != c.want {
			t.Errorf("bucketLetter(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}
