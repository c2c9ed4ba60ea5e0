package validate

import (
	"errors"
	"strings"
	"testing"
)

type sampleRequest struct {
	Query    string  `param:"q" validate:"searchquery"`
	Landmark string  `param:"landmark_id" validate:"required,entityid"`
	Viewer   string  `param:"viewer_id" validate:"omitempty,entityid"`
	Limit    int     `param:"limit" validate:"gte=0,lte=50"`
	Radius   float64 `param:"radius" validate:"gte=0"`
}

func TestStruct_Valid(t *testing.T) {
	req := sampleRequest{Query: "ラーメン", Landmark: "shibuya", Limit: 20, Radius: 1500}
	if err := Struct(&req); err != nil {
		t.Errorf("Struct() unexpected error = %v", err)
	}
}

func TestStruct_FieldErrors(t *testing.T) {
	tests := []struct {
		name      string
		req       sampleRequest
		wantField string
		wantTag   string
		wantMsg   string
	}{
		{
			name:      "missing landmark",
			req:       sampleRequest{},
			wantField: "landmark_id",
			wantTag:   "required",
			wantMsg:   "landmark_id is required",
		},
		{
			name:      "bad viewer id",
			req:       sampleRequest{Landmark: "lm", Viewer: "a b"},
			wantField: "viewer_id",
			wantTag:   "entityid",
			wantMsg:   "viewer_id must be a valid identifier",
		},
		{
			name:      "limit too large",
			req:       sampleRequest{Landmark: "lm", Limit: 51},
			wantField: "limit",
			wantTag:   "lte",
			wantMsg:   "limit must be less than or equal to 50",
		},
		{
			name:      "negative radius",
			req:       sampleRequest{Landmark: "lm", Radius: -1},
			wantField: "radius",
			wantTag:   "gte",
			wantMsg:   "radius must be greater than or equal to 0",
		},
		{
			name:      "query too long",
			req:       sampleRequest{Landmark: "lm", Query: strings.Repeat("x", 201)},
			wantField: "q",
			wantTag:   "searchquery",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(&tt.req)
			var fieldErrs Errors
			if !errors.As(err, &fieldErrs) {
				t.Fatalf("expected Errors, got %v", err)
			}
			if len(fieldErrs) != 1 {
				t.Fatalf("expected one field error, got %v", fieldErrs)
			}
			fe := fieldErrs[0]
			if fe.Field != tt.wantField || fe.Tag != tt.wantTag {
				t.Errorf("got field %q tag %q, want %q %q", fe.Field, fe.Tag, tt.wantField, tt.wantTag)
			}
			if tt.wantMsg != "" && fe.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", fe.Message, tt.wantMsg)
			}
		})
	}
}

func TestErrors_Error(t *testing.T) {
	err := Errors{{Message: "a is required"}, {Message: "b must be at most 3"}}
	if got := err.Error(); got != "a is required; b must be at most 3" {
		t.Errorf("Error() = %q", got)
	}
}
