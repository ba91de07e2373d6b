package errors

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	設定エラー
//
// ===========================================================================

// InvalidProportionError は分割比率が (0,1) の外にある場合のエラーです。
type InvalidProportionError struct {
	Proportion float64
}

func (e *InvalidProportionError) Error() string {
	return fmt.Sprintf("modelflow: split proportion must be in (0, 1), got %g", e.Proportion)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *InvalidProportionError) MarshalZerologObject(event *zerolog.Event) {
	event.Float64("proportion", e.Proportion).
		Str("type", "InvalidProportionError")
}

// NewInvalidProportionError は新しいInvalidProportionErrorを作成します。
func NewInvalidProportionError(proportion float64) error {
	return errors.WithStack(&InvalidProportionError{Proportion: proportion})
}

// EmptyPartitionError は分割後のどちらかの区画が 0 行になった場合のエラーです。
type EmptyPartitionError struct {
	Partition string // "training" or "testing"
	Rows      int    // rows in the source dataset
}

func (e *EmptyPartitionError) Error() string {
	return fmt.Sprintf("modelflow: %s partition is empty (dataset has %d rows)", e.Partition, e.Rows)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *EmptyPartitionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("partition", e.Partition).
		Int("rows", e.Rows).
		Str("type", "EmptyPartitionError")
}

// NewEmptyPartitionError は新しいEmptyPartitionErrorを作成します。
func NewEmptyPartitionError(partition string, rows int) error {
	return errors.WithStack(&EmptyPartitionError{Partition: partition, Rows: rows})
}

// GridError はチューニンググリッドが不正な場合のエラーです。
type GridError struct {
	Param  string
	Reason string
}

func (e *GridError) Error() string {
	if e.Param == "" {
		return fmt.Sprintf("modelflow: malformed tuning grid: %s", e.Reason)
	}
	return fmt.Sprintf("modelflow: malformed tuning grid: parameter '%s': %s", e.Param, e.Reason)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *GridError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param", e.Param).
		Str("reason", e.Reason).
		Str("type", "GridError")
}

// NewGridError は新しいGridErrorを作成します。
func NewGridError(param, reason string) error {
	return errors.WithStack(&GridError{Param: param, Reason: reason})
}

// ===========================================================================
//
//	データエラー
//
// ===========================================================================

// UnseenLevelError は学習時に存在しなかったカテゴリ水準を適用時に検出したエラーです。
type UnseenLevelError struct {
	Column string
	Level  string
}

func (e *UnseenLevelError) Error() string {
	return fmt.Sprintf("modelflow: column '%s': level %q was not present when the recipe was fit", e.Column, e.Level)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *UnseenLevelError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("column", e.Column).
		Str("level", e.Level).
		Str("type", "UnseenLevelError")
}

// NewUnseenLevelError は新しいUnseenLevelErrorを作成します。
func NewUnseenLevelError(column, level string) error {
	return errors.WithStack(&UnseenLevelError{Column: column, Level: level})
}

// ModelTargetTypeMismatchError は目的変数の型がモデルのモードと合わない場合のエラーです。
type ModelTargetTypeMismatchError struct {
	Model    string
	Outcome  string
	Expected string
	Got      string
}

func (e *ModelTargetTypeMismatchError) Error() string {
	return fmt.Sprintf("modelflow: %s expects a %s outcome but column '%s' is %s",
		e.Model, e.Expected, e.Outcome, e.Got)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *ModelTargetTypeMismatchError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Model).
		Str("outcome", e.Outcome).
		Str("expected", e.Expected).
		Str("got", e.Got).
		Str("type", "ModelTargetTypeMismatchError")
}

// NewModelTargetTypeMismatchError は新しいModelTargetTypeMismatchErrorを作成します。
func NewModelTargetTypeMismatchError(model, outcome, expected, got string) error {
	return errors.WithStack(&ModelTargetTypeMismatchError{
		Model:    model,
		Outcome:  outcome,
		Expected: expected,
		Got:      got,
	})
}

// InsufficientDataError は自由度に対して行数が足りない場合のエラーです。
type InsufficientDataError struct {
	Op       string
	Rows     int
	Required int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("modelflow: %s: insufficient data, need at least %d rows, got %d", e.Op, e.Required, e.Rows)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *InsufficientDataError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("rows", e.Rows).
		Int("required", e.Required).
		Str("type", "InsufficientDataError")
}

// NewInsufficientDataError は新しいInsufficientDataErrorを作成します。
func NewInsufficientDataError(op string, rows, required int) error {
	return errors.WithStack(&InsufficientDataError{Op: op, Rows: rows, Required: required})
}

// ===========================================================================
//
//	未サポート操作
//
// ===========================================================================

// UnsupportedPredictionModeError はモデルが対応していない予測モードを要求した場合のエラーです。
type UnsupportedPredictionModeError struct {
	Model string
	Mode  string
}

func (e *UnsupportedPredictionModeError) Error() string {
	return fmt.Sprintf("modelflow: %s does not support prediction mode %q", e.Model, e.Mode)
}

// MarshalZerologObject implements zerolog.LogObjectMarshaler.
func (e *UnsupportedPredictionModeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.Model).
		Str("mode", e.Mode).
		Str("type", "UnsupportedPredictionModeError")
}

// NewUnsupportedPredictionModeError は新しいUnsupportedPredictionModeErrorを作成します。
func NewUnsupportedPredictionModeError(model, mode string) error {
	return errors.WithStack(&UnsupportedPredictionModeError{Model: model, Mode: mode})
}
