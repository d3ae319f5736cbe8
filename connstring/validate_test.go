package connstring

import "testing"

func TestValidateRequiresDataSource(t *testing.T) {
	info := &ConnectionInfo{}
	if err := info.Validate(); err == nil {
		t.Fatal("expected an error when data source is empty")
	}
}

func TestValidateRejectsClientIDWithoutKey(t *testing.T) {
	info := &ConnectionInfo{DataSource: "https://cluster.example.com", ApplicationClientID: "client-1"}
	if err := info.Validate(); err == nil {
		t.Fatal("expected an error for a client id without a matching key")
	}
}

func TestValidatePassesWithDataSourceOnly(t *testing.T) {
	info := &ConnectionInfo{DataSource: "https://cluster.example.com"}
	if err := info.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}
