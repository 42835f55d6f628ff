package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxBody = 64 << 10

// params is a flat view of a webhook body. Gateways post either form fields
// or a JSON object.
type params map[string]string

func readParams(r *http.Request) (params, error) {
	p := params{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var raw map[string]interface{}
		dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil && err != io.EOF {
			return nil, fmt.Errorf("invalid json body: %w", err)
		}
		for k, v := range raw {
			if v != nil {
				p[k] = fmt.Sprint(v)
			}
		}
		return p, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("invalid form body: %w", err)
	}
	for k, v := range r.Form {
		if len(v) > 0 {
			p[k] = v[0]
		}
	}
	return p, nil
}

// get returns the first non-empty value among keys
func (p params) get(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(p[k]); v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
