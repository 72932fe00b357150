package gmail

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/mikey/llm-smart-labels/internal/core"
	"go.uber.org/zap/zaptest"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

type recordedCall struct {
	threadID string
	req      *gmail.ModifyThreadRequest
}

func recorder(calls *[]recordedCall, err error) modifyFunc {
	return func(_ context.Context, threadID string, req *gmail.ModifyThreadRequest) error {
		*calls = append(*calls, recordedCall{threadID: threadID, req: req})
		return err
	}
}

func TestAddLabelToThread(t *testing.T) {
	var calls []recordedCall
	a := newLabelApplier("acc", recorder(&calls, nil), zaptest.NewLogger(t))

	if err := a.AddLabelToThread(context.Background(), "acc", "t1", "Label_7"); err != nil {
		t.Fatalf("AddLabelToThread() error = %v", err)
	}
	if len(calls) != 1 || calls[0].threadID != "t1" {
		t.Fatalf("calls = %+v", calls)
	}
	if !reflect.DeepEqual(calls[0].req.AddLabelIds, []string{"Label_7"}) || len(calls[0].req.RemoveLabelIds) != 0 {
		t.Fatalf("request = %+v", calls[0].req)
	}

	if err := a.AddLabelToThread(context.Background(), "acc", "t1", "  "); err == nil {
		t.Fatal("blank label id should be rejected")
	}
}

func TestModifyThreadFullActions(t *testing.T) {
	var calls []recordedCall
	a := newLabelApplier("acc", recorder(&calls, nil), zaptest.NewLogger(t))

	actions := core.CompileActions(core.FilterActions{ApplyLabel: "L1", Archive: true, MarkRead: true})
	if err := a.ModifyThread(context.Background(), "acc", "t1", actions); err != nil {
		t.Fatalf("ModifyThread() error = %v", err)
	}
	want := []string{core.LabelInbox, core.LabelUnread}
	if !reflect.DeepEqual(calls[0].req.RemoveLabelIds, want) {
		t.Fatalf("RemoveLabelIds = %v, want %v", calls[0].req.RemoveLabelIds, want)
	}
	if len(actions.RemoveLabelIDs) != 1 {
		t.Fatal("compiled actions must not be mutated")
	}
}

func TestModifyThreadSkipsEmptyDelta(t *testing.T) {
	var calls []recordedCall
	a := newLabelApplier("acc", recorder(&calls, nil), zaptest.NewLogger(t))
	if err := a.ModifyThread(context.Background(), "acc", "t1", core.CompiledActions{}); err != nil {
		t.Fatalf("ModifyThread() error = %v", err)
	}
	if len(calls) != 0 {
		t.Fatal("empty action set should not call the API")
	}
}

func TestModifyThreadAccountMismatch(t *testing.T) {
	var calls []recordedCall
	a := newLabelApplier("acc", recorder(&calls, nil), zaptest.NewLogger(t))
	err := a.AddLabelToThread(context.Background(), "someone-else", "t1", "L1")
	if !errors.Is(err, ErrAccountMismatch) {
		t.Fatalf("error = %v, want ErrAccountMismatch", err)
	}
	if len(calls) != 0 {
		t.Fatal("mismatched account should not call the API")
	}
}

func TestModifyThreadWrapsAPIError(t *testing.T) {
	var calls []recordedCall
	apiErr := &googleapi.Error{Code: 404, Message: "Requested entity was not found."}
	a := newLabelApplier("acc", recorder(&calls, apiErr), zaptest.NewLogger(t))

	err := a.AddLabelToThread(context.Background(), "acc", "gone", "L1")
	var got *googleapi.Error
	if !errors.As(err, &got) || got.Code != 404 {
		t.Fatalf("error = %v, want wrapped googleapi 404", err)
	}
}
