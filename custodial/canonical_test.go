package custodial

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestCanonicalJSON_StructAndMapAgree(t *testing.T) {
	type payload struct {
		URL    string `json:"url"`
		Method string `json:"method"`
		Body   int    `json:"body"`
	}

	fromStruct, err := CanonicalJSON(payload{URL: "https://api.example.com", Method: "POST", Body: 7})
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	fromMap, err := CanonicalJSON(map[string]interface{}{
		"body":   7,
		"url":    "https://api.example.com",
		"method": "POST",
	})
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	// Field declaration order must not leak into the serialization
	if !bytes.Equal(fromStruct, fromMap) {
		t.Errorf("Expected identical canonical bytes, got %s and %s", fromStruct, fromMap)
	}
}

func TestCanonicalJSON_SortsNestedKeys(t *testing.T) {
	canonical, err := CanonicalJSON(map[string]interface{}{
		"z": map[string]interface{}{"b": 2, "a": 1},
		"a": []interface{}{"keep", "order"},
	})
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	expected := `{"a":["keep","order"],"z":{"a":1,"b":2}}`
	if string(canonical) != expected {
		t.Errorf("Expected %s, got %s", expected, canonical)
	}
}

func TestCanonicalJSON_PreservesLargeIntegers(t *testing.T) {
	// Wei amounts exceed float64 precision; a lossy round trip would change
	// the signed bytes.
	canonical, err := CanonicalJSON(map[string]interface{}{
		"value": json.Number("1000000000000000000000"),
	})
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}

	expected := `{"value":1000000000000000000000}`
	if string(canonical) != expected {
		t.Errorf("Expected %s, got %s", expected, canonical)
	}
}

func TestSignedRequestEnvelope_Canonical(t *testing.T) {
	envelope := NewSignedRequestEnvelope(
		"POST",
		"https://api.example.com/v1/wallets/rpc",
		map[string]interface{}{"b": 2, "a": 1},
		"app-123",
	)

	canonical, err := envelope.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}

	expected := `{"body":{"a":1,"b":2},"headers":{"thirdfy-app-id":"app-123"},"method":"POST","url":"https://api.example.com/v1/wallets/rpc","version":1}`
	if string(canonical) != expected {
		t.Errorf("Expected %s, got %s", expected, canonical)
	}

	// Repeated serialization is byte-stable
	again, err := envelope.Canonical()
	if err != nil {
		t.Fatalf("Canonical failed: %v", err)
	}
	if !bytes.Equal(canonical, again) {
		t.Error("Expected repeated canonicalization to be byte-identical")
	}
}
