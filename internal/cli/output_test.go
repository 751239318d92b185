package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/cart"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "json",
		Writer:  buf,
		TraceID: "4bf92f3577b34da6a3ce929d0e0e4736",
	}

	err := formatter.Success(map[string]string{"result": "success"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", resp.TraceID)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeSync, "failed to read cart", "connection refused")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeSync, resp.Error.Code)
	assert.Equal(t, "failed to read cart", resp.Error.Message)
	assert.Equal(t, "connection refused", resp.Error.Details)
	assert.Empty(t, resp.TraceID)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	require.NoError(t, formatter.Success("cart is empty"))
	assert.Equal(t, "cart is empty\n", buf.String())
}

func TestOutputFormatter_TextRenderer(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
		Prices: newPriceFormatter("en-US"),
	}

	burger := cart.FoodItem{ID: "burger", Name: "Burger", Price: decimal.NewFromInt(1250)}
	snap := cart.New([]cart.Line{
		{ID: "line-1", FoodItemID: "burger", Quantity: 2, FoodItem: burger},
	}, decimal.NewFromInt(40))
	snap.Version = 3

	require.NoError(t, formatter.Success(newCartView("sess-1", snap)))
	out := buf.String()
	assert.Contains(t, out, "session sess-1 (version 3)")
	assert.Contains(t, out, "Burger")
	assert.Contains(t, out, "1,250.00")
	assert.Contains(t, out, "subtotal  2,500.00")
	assert.Contains(t, out, "total     2,540.00")
}

func TestOutputFormatter_TextError(t *testing.T) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:    "text",
		Writer:    out,
		ErrWriter: errOut,
	}

	require.NoError(t, formatter.Error(CodeConfig, "invalid configuration", nil))
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "Error [E001]: invalid configuration")
}

func TestOutputFormatter_TextErrorVerbose(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: true,
	}

	require.NoError(t, formatter.Error(CodeSync, "change failed", map[string]string{"item": "burger"}))
	assert.Contains(t, buf.String(), "Error [E003]")
	assert.Contains(t, buf.String(), "Details:")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("session %s", "sess-1")

			assert.Empty(t, out.String(), "never corrupts JSON output")
			if tt.wantLog {
				assert.Contains(t, errOut.String(), "session sess-1")
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"plain", errors.New("boom"), ExitFailure},
		{"exit_error", NewExitError(ExitCommandError, "bad args"), ExitCommandError},
		{"wrapped", fmt.Errorf("run: %w", WrapExitError(ExitFailure, "sync", errors.New("503"))), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestExitError_Message(t *testing.T) {
	inner := errors.New("connection refused")
	err := WrapExitError(ExitFailure, "failed to read cart", inner)
	assert.Equal(t, "failed to read cart: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "bad args", NewExitError(ExitCommandError, "bad args").Error())
}

func TestPriceFormatter(t *testing.T) {
	tests := []struct {
		locale string
		amount string
		want   string
	}{
		{"en-US", "1250.5", "1,250.50"},
		{"en-US", "80", "80.00"},
		{"de-DE", "1250.5", "1.250,50"},
		{"not a tag!", "9.99", "9.99"},
	}
	for _, tt := range tests {
		t.Run(tt.locale+"/"+tt.amount, func(t *testing.T) {
			f := newPriceFormatter(tt.locale)
			assert.Equal(t, tt.want, f.Format(decimal.RequireFromString(tt.amount)))
		})
	}

	var zero priceFormatter
	assert.Equal(t, "3.00", zero.Format(decimal.NewFromInt(3)))
}
