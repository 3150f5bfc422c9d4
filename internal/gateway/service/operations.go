package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	documentmodels "clearinghouse/internal/document/models"
	"clearinghouse/internal/ids"
	keyringmodels "clearinghouse/internal/keyring/models"
	processmodels "clearinghouse/internal/process/models"
	dErrors "clearinghouse/pkg/domain-errors"
)

const (
	payloadTypeJSON = "application/json"
	payloadTypeText = "text/plain"
)

// authorize binds the caller to the routed pid. Unknown pids and pids the
// caller does not own are rejected identically.
func (s *Service) authorize(ctx context.Context, ex *exchange) error {
	pid := ex.req.Pid
	switch ex.req.Operation {
	case OpCreateProcess:
		owner, err := s.processes.IsOwner(ctx, pid, ex.subject)
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil
		case err != nil:
			return err
		case !owner:
			return processExists()
		}
		ex.alreadyOwner = true
		return nil

	case OpLogMessage, OpKeyringInsert, OpKeyringDelete:
		// Logging to an unknown pid creates it once the message is admitted;
		// doc types may be registered before the process is created.
		owner, err := s.processes.IsOwner(ctx, pid, ex.subject)
		switch {
		case dErrors.HasCode(err, dErrors.CodeNotFound):
			return nil
		case err != nil:
			return err
		case !owner:
			return notAuthorized("not an owner")
		}
		return nil

	default:
		return s.requireOwner(ctx, pid, ex.subject)
	}
}

func (s *Service) requireOwner(ctx context.Context, pid, subject string) error {
	owner, err := s.processes.IsOwner(ctx, pid, subject)
	switch {
	case dErrors.HasCode(err, dErrors.CodeNotFound):
		return notAuthorized("pid unknown")
	case err != nil:
		return err
	case !owner:
		return notAuthorized("not an owner")
	}
	return nil
}

func processExists() *rejection {
	return &rejection{
		reason:      ids.ReasonProcessAlreadyExists,
		status:      http.StatusBadRequest,
		description: "process already exists",
		detail:      "pid owned by others",
	}
}

func (s *Service) invoke(ctx context.Context, ex *exchange) (*Response, error) {
	switch ex.req.Operation {
	case OpCreateProcess:
		return s.createProcess(ctx, ex)
	case OpLogMessage:
		return s.logMessage(ctx, ex)
	case OpQueryPid:
		return s.queryPid(ctx, ex)
	case OpQueryDocument:
		return s.queryDocument(ctx, ex)
	case OpKeyringInsert:
		return s.keyringInsert(ctx, ex)
	case OpKeyringDelete:
		return s.keyringDelete(ctx, ex)
	}
	return nil, dErrors.New(dErrors.CodeInternal, fmt.Sprintf("unknown operation %q", ex.req.Operation))
}

// createProcess registers the pid with the caller as first owner, followed
// by any owners named in an OwnerList payload. Repeating the call as an
// owner is a no-op.
func (s *Service) createProcess(ctx context.Context, ex *exchange) (*Response, error) {
	pid := ex.req.Pid
	if ex.alreadyOwner {
		return s.result(ex, http.StatusOK, pid, payloadTypeText), nil
	}

	owners := []string{ex.subject}
	if ex.msg.Payload != "" {
		list, err := processmodels.ParseOwnerList(ex.msg.Payload)
		if err != nil {
			return nil, err
		}
		owners = append(owners, list.Owners...)
	}

	_, err := s.processes.Create(ctx, pid, owners)
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		// Created concurrently since authorize looked.
		owner, ownerErr := s.processes.IsOwner(ctx, pid, ex.subject)
		if ownerErr == nil && owner {
			return s.result(ex, http.StatusOK, pid, payloadTypeText), nil
		}
		return nil, processExists()
	}
	if err != nil {
		return nil, err
	}
	return s.result(ex, http.StatusCreated, pid, payloadTypeText), nil
}

func (s *Service) logMessage(ctx context.Context, ex *exchange) (*Response, error) {
	pid := ex.req.Pid
	docType := ex.msg.Header.DocType
	if docType == "" {
		docType = s.defaultDocType
	}

	entry, err := s.keyring.Get(ctx, pid, docType)
	if err != nil {
		return nil, err
	}
	logged := ex.msg.Logged(pid)
	if err := entry.CheckPayload(logged.Payload); err != nil {
		return nil, err
	}

	// The pid is claimed only by a message the keyring admits. Another
	// caller may have created it since authorize looked.
	p, _, err := s.processes.Ensure(ctx, pid, ex.subject)
	if err != nil {
		return nil, err
	}
	if !p.IsOwner(ex.subject) {
		return nil, notAuthorized("not an owner")
	}

	receipt, err := s.documents.Append(ctx, pid, docType, logged, entry)
	if err != nil {
		return nil, err
	}
	return s.jsonResult(ex, http.StatusCreated, receipt)
}

// queryDocument returns one logged message. A document whose sealing entry
// is no longer registered is reported as not found.
func (s *Service) queryDocument(ctx context.Context, ex *exchange) (*Response, error) {
	doc, err := s.documents.Get(ctx, ex.req.Pid, ex.req.DocumentID)
	if err != nil {
		return nil, err
	}
	logged, found, err := s.open(ctx, doc, map[entryRef]*keyringmodels.Entry{})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, dErrors.New(dErrors.CodeNotFound, "document not found")
	}
	return s.jsonResult(ex, http.StatusOK, logged)
}

// queryPid returns the pid's logged messages in append order, leaving out
// documents whose sealing entry is no longer registered.
func (s *Service) queryPid(ctx context.Context, ex *exchange) (*Response, error) {
	docs, err := s.documents.List(ctx, ex.req.Pid)
	if err != nil {
		return nil, err
	}
	entries := make(map[entryRef]*keyringmodels.Entry)
	out := make([]ids.IdsMessage, 0, len(docs))
	for _, doc := range docs {
		logged, found, err := s.open(ctx, doc, entries)
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, logged)
		}
	}
	return s.jsonResult(ex, http.StatusOK, out)
}

type entryRef struct {
	scope     string
	docTypeID string
}

// open restores a document's logged message with the keyring entry it was
// sealed with, caching entries by scope and doc type. found is false when
// that entry was deleted or now holds a different key.
func (s *Service) open(ctx context.Context, doc *documentmodels.Document, entries map[entryRef]*keyringmodels.Entry) (ids.IdsMessage, bool, error) {
	ref := entryRef{scope: doc.KeyScope, docTypeID: doc.DocTypeID}
	entry, ok := entries[ref]
	if !ok {
		var err error
		entry, err = s.keyring.Lookup(ctx, ref.scope, ref.docTypeID)
		switch {
		case dErrors.HasCode(err, dErrors.CodeKeyringMissing):
			entry = nil
		case err != nil:
			return ids.IdsMessage{}, false, err
		}
		entries[ref] = entry
	}
	if entry == nil || entry.KeyID() != doc.KeyID {
		return ids.IdsMessage{}, false, nil
	}
	logged, err := s.documents.Open(doc, entry)
	if err != nil {
		return ids.IdsMessage{}, false, err
	}
	return logged, true, nil
}

func (s *Service) keyringInsert(ctx context.Context, ex *exchange) (*Response, error) {
	material, err := keyringmodels.ParseMaterial(ex.msg.Payload)
	if err != nil {
		return nil, err
	}
	entry, err := s.keyring.Insert(ctx, ex.req.Pid, ex.req.DocTypeID, material)
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		return nil, malformed(err)
	}
	if err != nil {
		return nil, err
	}
	return s.jsonResult(ex, http.StatusCreated, entry.Describe())
}

func (s *Service) keyringDelete(ctx context.Context, ex *exchange) (*Response, error) {
	if err := s.keyring.Delete(ctx, ex.req.Pid, ex.req.DocTypeID); err != nil {
		return nil, err
	}
	return s.jsonResult(ex, http.StatusOK, map[string]string{"pid": ex.req.Pid, "doc_type_id": ex.req.DocTypeID})
}

func (s *Service) result(ex *exchange, status int, payload, payloadType string) *Response {
	msg := s.builder.Result(ex.requestHeader(), payload)
	msg.PayloadType = payloadType
	return &Response{Status: status, Message: msg}
}

func (s *Service) jsonResult(ex *exchange, status int, v any) (*Response, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode result payload")
	}
	return s.result(ex, status, string(body), payloadTypeJSON), nil
}
