package logger

import "testing"

func TestOperationFromSQL(t *testing.T) {
	tests := map[string]string{
		"SELECT id FROM invoices":                           "SELECT",
		"  insert into payment_events (id) values (?)":      "INSERT",
		"WITH paid AS (SELECT 1) UPDATE invoices SET x = 1": "SELECT",
		"(DELETE FROM price_overrides)":                     "DELETE",
		"":                                                  "UNKNOWN",
		"VACUUM":                                            "UNKNOWN",
	}
	for sql, want := range tests {
		if got := operationFromSQL(sql); got != want {
			t.Fatalf("operationFromSQL(%q) = %s, want %s", sql, got, want)
		}
	}
}
