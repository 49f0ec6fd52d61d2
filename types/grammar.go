// Copyright 2024 The hyperplane Authors
// This file is part of the hyperplane library.
//
// Parser for the transaction data grammar:
//
//	REGULAR.<op>
//	CAT.<op>.CAT_ID:<cat_id>
//	STATUS_UPDATE:<Success|Failure>.CAT_ID:<cat_id>
//	<op> ::= "credit" <acct:int> <amount:int> | "send" <from:int> <to:int> <amount:int>
//
// Kept purely syntactic (no execution) so hyperig can derive a transaction's
// lock-set before deciding whether to execute it. Over-approximating the
// lock set is safe; under-approximating breaks atomicity.
package types

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Kind is the outermost shape of a transaction's Data field.
type Kind int

const (
	KindRegular Kind = iota
	KindCAT
	KindStatusUpdate
)

// OpName identifies the executable operation inside a REGULAR/CAT payload.
type OpName string

const (
	OpCredit OpName = "credit"
	OpSend   OpName = "send"
)

// Op is a parsed, not-yet-executed operation plus the account keys it
// touches.
type Op struct {
	Name   OpName
	Amount int64
	// Account holds the single account for OpCredit.
	Account string
	// From/To hold the two accounts for OpSend.
	From string
	To   string
}

// Keys returns the set of account keys this op reads or writes, in a
// deterministic order. Any operation added beyond credit/send must extend
// this conservatively: over-approximating the lock set is safe.
func (o Op) Keys() []string {
	switch o.Name {
	case OpCredit:
		return []string{o.Account}
	case OpSend:
		return []string{o.From, o.To}
	default:
		return nil
	}
}

// ParsedData is the fully decoded form of a Transaction's Data field.
type ParsedData struct {
	Kind Kind
	// Op is populated for KindRegular and KindCAT.
	Op Op
	// CatId is populated for KindCAT and KindStatusUpdate.
	CatId CATId
	// StatusUpdateVerdict is populated for KindStatusUpdate; it is always a
	// terminal Proposal value (Success or Failure), never Pending.
	StatusUpdateVerdict Proposal
}

// ParseData parses a transaction's Data field per the grammar above. Any
// other prefix is rejected with ErrInvalidTransactionShape.
func ParseData(data string) (ParsedData, error) {
	switch {
	case strings.HasPrefix(data, "REGULAR."):
		op, err := parseOp(strings.TrimPrefix(data, "REGULAR."))
		if err != nil {
			return ParsedData{}, err
		}
		return ParsedData{Kind: KindRegular, Op: op}, nil

	case strings.HasPrefix(data, "CAT."):
		rest := strings.TrimPrefix(data, "CAT.")
		opPart, catId, err := splitCatId(rest)
		if err != nil {
			return ParsedData{}, err
		}
		op, err := parseOp(opPart)
		if err != nil {
			return ParsedData{}, err
		}
		return ParsedData{Kind: KindCAT, Op: op, CatId: catId}, nil

	case strings.HasPrefix(data, "STATUS_UPDATE:"):
		rest := strings.TrimPrefix(data, "STATUS_UPDATE:")
		verdictPart, catId, err := splitCatId(rest)
		if err != nil {
			return ParsedData{}, err
		}
		var verdict Proposal
		switch verdictPart {
		case "Success":
			verdict = ProposalSuccess
		case "Failure":
			verdict = ProposalFailure
		default:
			return ParsedData{}, errors.Wrapf(ErrInvalidTransactionShape, "bad status update verdict %q", verdictPart)
		}
		return ParsedData{Kind: KindStatusUpdate, CatId: catId, StatusUpdateVerdict: verdict}, nil

	default:
		return ParsedData{}, errors.Wrapf(ErrInvalidTransactionShape, "unrecognized data prefix %q", data)
	}
}

// splitCatId splits "<body>.CAT_ID:<id>" into body and id.
func splitCatId(s string) (body string, catId CATId, err error) {
	const marker = ".CAT_ID:"
	idx := strings.Index(s, marker)
	if idx < 0 {
		return "", "", errors.Wrapf(ErrInvalidTransactionShape, "missing CAT_ID in %q", s)
	}
	body = s[:idx]
	id := s[idx+len(marker):]
	if id == "" {
		return "", "", errors.Wrap(ErrInvalidTransactionShape, "empty CAT_ID")
	}
	return body, CATId(id), nil
}

func parseOp(s string) (Op, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return Op{}, errors.Wrap(ErrInvalidTransactionShape, "empty op")
	}
	switch OpName(fields[0]) {
	case OpCredit:
		if len(fields) != 3 {
			return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "credit wants 2 args, got %d", len(fields)-1)
		}
		if _, err := strconv.ParseInt(fields[1], 10, 64); err != nil {
			return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "bad credit account %q", fields[1])
		}
		amount, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "bad credit amount %q", fields[2])
		}
		return Op{Name: OpCredit, Account: fields[1], Amount: amount}, nil

	case OpSend:
		if len(fields) != 4 {
			return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "send wants 3 args, got %d", len(fields)-1)
		}
		for _, acct := range fields[1:3] {
			if _, err := strconv.ParseInt(acct, 10, 64); err != nil {
				return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "bad send account %q", acct)
			}
		}
		amount, err := strconv.ParseInt(fields[3], 10, 64)
		if err != nil {
			return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "bad send amount %q", fields[3])
		}
		return Op{Name: OpSend, From: fields[1], To: fields[2], Amount: amount}, nil

	default:
		return Op{}, errors.Wrapf(ErrInvalidTransactionShape, "unknown op %q", fields[0])
	}
}

// EncodeRegularCredit builds a REGULAR.credit payload.
func EncodeRegularCredit(account string, amount int64) string {
	return fmt.Sprintf("REGULAR.credit %s %d", account, amount)
}

// EncodeRegularSend builds a REGULAR.send payload.
func EncodeRegularSend(from, to string, amount int64) string {
	return fmt.Sprintf("REGULAR.send %s %s %d", from, to, amount)
}

// EncodeCATCredit builds a CAT.credit payload.
func EncodeCATCredit(account string, amount int64, catId CATId) string {
	return fmt.Sprintf("CAT.credit %s %d.CAT_ID:%s", account, amount, catId)
}

// EncodeCATSend builds a CAT.send payload.
func EncodeCATSend(from, to string, amount int64, catId CATId) string {
	return fmt.Sprintf("CAT.send %s %s %d.CAT_ID:%s", from, to, amount, catId)
}

// EncodeStatusUpdate builds a STATUS_UPDATE:<verdict>.CAT_ID:<id> payload.
func EncodeStatusUpdate(verdict Proposal, catId CATId) string {
	return fmt.Sprintf("STATUS_UPDATE:%s.CAT_ID:%s", verdict, catId)
}
