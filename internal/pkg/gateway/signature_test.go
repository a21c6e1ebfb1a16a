package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestSignUsesSortedQueryString(t *testing.T) {
	key := "checksum"
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte("amount=2000&cancelUrl=https://x/cancel&description=DEPabc&orderCode=123&returnUrl=https://x/ok"))
	want := hex.EncodeToString(mac.Sum(nil))

	got := Sign(map[string]string{
		"returnUrl":   "https://x/ok",
		"orderCode":   "123",
		"amount":      "2000",
		"description": "DEPabc",
		"cancelUrl":   "https://x/cancel",
	}, key)
	if got != want {
		t.Fatalf("Sign() = %s, want %s", got, want)
	}
}

func TestVerifyData(t *testing.T) {
	key := "checksum"
	data := []byte(`{"orderCode":123,"amount":3000,"description":"VQRIO123","accountNumber":"12345678","reference":"TF230204212323","transactionDateTime":"2023-02-04 18:25:00","currency":"VND","paymentLinkId":"124c33293c43417ab7879e14c8d9eb18","code":"00","desc":"Thành công","counterAccountBankId":"","counterAccountName":null,"virtualAccountName":""}`)

	sig, err := SignData(data, key)
	if err != nil {
		t.Fatalf("SignData() error = %v", err)
	}

	tests := []struct {
		name string
		data []byte
		sig  string
		key  string
		want bool
	}{
		{name: "valid", data: data, sig: sig, key: key, want: true},
		{name: "uppercase hex", data: data, sig: upper(sig), key: key, want: true},
		{name: "reordered keys", data: []byte(`{"virtualAccountName":"","counterAccountName":null,"counterAccountBankId":"","desc":"Thành công","code":"00","paymentLinkId":"124c33293c43417ab7879e14c8d9eb18","currency":"VND","transactionDateTime":"2023-02-04 18:25:00","reference":"TF230204212323","accountNumber":"12345678","description":"VQRIO123","amount":3000,"orderCode":123}`), sig: sig, key: key, want: true},
		{name: "tampered amount", data: []byte(`{"orderCode":123,"amount":3000000,"description":"VQRIO123","accountNumber":"12345678","reference":"TF230204212323","transactionDateTime":"2023-02-04 18:25:00","currency":"VND","paymentLinkId":"124c33293c43417ab7879e14c8d9eb18","code":"00","desc":"Thành công","counterAccountBankId":"","counterAccountName":null,"virtualAccountName":""}`), sig: sig, key: key, want: false},
		{name: "wrong key", data: data, sig: sig, key: "other", want: false},
		{name: "empty signature", data: data, sig: "", key: key, want: false},
		{name: "not hex", data: data, sig: "zz", key: key, want: false},
		{name: "not an object", data: []byte(`[1,2]`), sig: sig, key: key, want: false},
	}

	for _, tt := range tests {
		if got := VerifyData(tt.data, tt.sig, tt.key); got != tt.want {
			t.Fatalf("%s: VerifyData() = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFlattenNullBecomesEmpty(t *testing.T) {
	fields, err := flatten([]byte(`{"a":null,"b":"null","c":1.50,"d":true}`))
	if err != nil {
		t.Fatalf("flatten() error = %v", err)
	}
	if fields["a"] != "" || fields["b"] != "" {
		t.Fatalf("expected null values to flatten to empty strings, got %q %q", fields["a"], fields["b"])
	}
	if fields["c"] != "1.50" {
		t.Fatalf("expected number literal to be kept, got %q", fields["c"])
	}
	if fields["d"] != "true" {
		t.Fatalf("expected bool to render as true, got %q", fields["d"])
	}
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
