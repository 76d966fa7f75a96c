package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/formulahunter/recordsync-go/internal/cache/sqlitekv"
	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/reconciler"
	"github.com/formulahunter/recordsync-go/internal/recordhash"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
	"github.com/formulahunter/recordsync-go/internal/syncengine"
)

// server holds the authoritative record store and serializes every request
// against it through mu — the single serialization point spec.md §5
// assigns to the authoritative reconciler.
type server struct {
	mu sync.Mutex

	store      *recordstore.Store
	reconciler *reconciler.Reconciler
	registry   *recordtype.Registry
	kv         *sqlitekv.Store
	logger     *slog.Logger
}

func newServer(store *recordstore.Store, kv *sqlitekv.Store, logger *slog.Logger) *server {
	return &server{
		store:      store,
		reconciler: reconciler.New(store, logger),
		registry:   store.Registry(),
		kv:         kv,
		logger:     logger,
	}
}

func newRouter(s *server) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/hash", s.handleHash).Methods(http.MethodGet)
	r.HandleFunc("/query", s.handleQuery).Methods(http.MethodPost)

	return r
}

func (s *server) handleHash(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := s.currentHashLocked()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeCodecValue(w, s.logger, hash)
}

// handleQuery dispatches POST /query on the body's "query" field, per
// spec.md §6.
func (s *server) handleQuery(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	value, err := codec.Parse(raw)
	if err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	body, ok := value.(*codec.OrderedMap)
	if !ok {
		http.Error(w, "request body must be an object", http.StatusBadRequest)
		return
	}

	queryRaw, _ := body.Get("query")

	query, ok := queryRaw.(string)
	if !ok {
		http.Error(w, `missing or non-string "query" field`, http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch query {
	case "add":
		s.handleMutate(w, body, s.store.Add)
	case "edit":
		s.handleMutate(w, body, s.applyEdit)
	case "delete":
		s.handleMutate(w, body, s.applyDelete)
	case "reconcile":
		s.handleReconcile(w, body)
	case "resolve":
		s.handleResolve(w, body)
	default:
		http.Error(w, `unknown query "`+query+`"`, http.StatusBadRequest)
	}
}

// handleMutate decodes {type, instance} and applies apply to the resulting
// Record, then responds with the new authoritative hash — shared by
// add/edit/delete, which differ only in how the record is applied.
func (s *server) handleMutate(w http.ResponseWriter, body *codec.OrderedMap, apply func(*recordstore.Record) error) {
	typeRaw, _ := body.Get("type")

	typeName, ok := typeRaw.(string)
	if !ok {
		http.Error(w, `missing or non-string "type" field`, http.StatusBadRequest)
		return
	}

	instanceRaw, _ := body.Get("instance")

	instanceObj, ok := instanceRaw.(*codec.OrderedMap)
	if !ok {
		http.Error(w, `missing or non-object "instance" field`, http.StatusBadRequest)
		return
	}

	rec, err := recordstore.RecordFromCanonical(typeName, instanceObj, s.registry)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := apply(rec); err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := persistStore(context.Background(), s.kv, s.store); err != nil {
		writeError(w, s.logger, err)
		return
	}

	hash, err := s.currentHashLocked()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	writeCodecValue(w, s.logger, hash)
}

func (s *server) applyEdit(rec *recordstore.Record) error {
	return s.store.Replace(rec.Type, rec.Created, rec.Payload, recordstore.Now())
}

func (s *server) applyDelete(rec *recordstore.Record) error {
	return s.store.Remove(rec.Type, rec.Created, true, recordstore.Now())
}

func (s *server) handleReconcile(w http.ResponseWriter, body *codec.OrderedMap) {
	dataRaw, _ := body.Get("data")

	dataObj, ok := dataRaw.(*codec.OrderedMap)
	if !ok {
		http.Error(w, `missing or non-object "data" field`, http.StatusBadRequest)
		return
	}

	syncRaw, _ := dataObj.Get("sync")

	lastSync, ok := toTimestamp(syncRaw)
	if !ok {
		http.Error(w, `missing or non-numeric "sync" field`, http.StatusBadRequest)
		return
	}

	instancesRaw, _ := dataObj.Get("instances")

	instancesObj, ok := instancesRaw.(*codec.OrderedMap)
	if !ok {
		http.Error(w, `missing or non-object "instances" field`, http.StatusBadRequest)
		return
	}

	delta, err := syncengine.DecodeTypeIndex(instancesObj, s.registry)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	result, err := s.reconciler.Reconcile(lastSync, delta)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	if err := persistStore(context.Background(), s.kv, s.store); err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.writeReconcileResult(w, result)
}

// handleResolve applies the caller's already-chosen conflict versions
// directly — unlike reconcile, there is nothing left to collide against,
// so this bypasses the reconciler's screening and applies each entry as the
// final authoritative value (tombstone -> Remove, record -> Replace if a
// matching id exists, Add otherwise).
func (s *server) handleResolve(w http.ResponseWriter, body *codec.OrderedMap) {
	dataRaw, _ := body.Get("data")

	dataObj, ok := dataRaw.(*codec.OrderedMap)
	if !ok {
		http.Error(w, `missing or non-object "data" field`, http.StatusBadRequest)
		return
	}

	chosen, err := syncengine.DecodeTypeIndex(dataObj, s.registry)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	for typeName, ranks := range chosen {
		for id, entry := range ranks[recordstore.RankDeleted] {
			if err := s.store.Remove(typeName, id, true, entry.Tombstone.Deleted); err != nil {
				writeError(w, s.logger, err)
				return
			}
		}

		for rank, ids := range ranks {
			if rank == recordstore.RankDeleted {
				continue
			}

			for id, entry := range ids {
				if entry.Record == nil {
					continue
				}

				if _, exists := s.store.Get(typeName, id); exists {
					err = s.store.Replace(typeName, id, entry.Record.Payload, entry.Record.Modified)
				} else {
					err = s.store.Add(entry.Record)
				}

				if err != nil {
					writeError(w, s.logger, err)
					return
				}
			}
		}
	}

	if err := persistStore(context.Background(), s.kv, s.store); err != nil {
		writeError(w, s.logger, err)
		return
	}

	hash, err := s.currentHashLocked()
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	s.writeReconcileResult(w, &reconciler.Result{Hash: hash, Data: recordstore.TypeIndex{}})
}

func (s *server) writeReconcileResult(w http.ResponseWriter, result *reconciler.Result) {
	data, err := syncengine.EncodeTypeIndex(result.Data)
	if err != nil {
		writeError(w, s.logger, err)
		return
	}

	resp := codec.NewOrderedMap().Set("hash", result.Hash).Set("data", data)

	writeCodecValue(w, s.logger, resp)
}

func (s *server) currentHashLocked() (string, error) {
	top, err := s.store.ToCanonical()
	if err != nil {
		return "", err
	}

	data, err := codec.Serialize(top)
	if err != nil {
		return "", err
	}

	return recordhash.Sum(data), nil
}

func toTimestamp(raw any) (recordstore.Timestamp, bool) {
	switch v := raw.(type) {
	case int64:
		return recordstore.Timestamp(v), true
	case float64:
		return recordstore.Timestamp(v), true
	default:
		return 0, false
	}
}

func writeCodecValue(w http.ResponseWriter, logger *slog.Logger, value any) {
	data, err := codec.Serialize(value)
	if err != nil {
		writeError(w, logger, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		logger.Warn("writing response failed", "error", err)
	}
}

// writeError maps a domain error to a status code: a recordstore TypeError,
// IdConflictError, or NoMatchError is a client mistake (400); anything else
// is treated as an internal failure (500).
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := http.StatusInternalServerError

	var (
		typeErr  *recordstore.TypeError
		idErr    *recordstore.IdConflictError
		matchErr *recordstore.NoMatchError
	)

	if errors.As(err, &typeErr) || errors.As(err, &idErr) || errors.As(err, &matchErr) {
		status = http.StatusBadRequest
	}

	logger.Warn("request failed", "status", status, "error", err)
	http.Error(w, err.Error(), status)
}
