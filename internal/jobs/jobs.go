package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"clinicdocs/internal/layout"
	"clinicdocs/internal/model"
	"clinicdocs/internal/storage"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeDocumentRender = "document:render"

// DocumentReader loads stored documents
type DocumentReader interface {
	GetDocument(ctx context.Context, id string) (*model.Document, error)
}

// ArtifactStore keeps rendered page plans
type ArtifactStore interface {
	Put(ctx context.Context, objectName string, reader io.Reader) error
}

// Publisher announces finished renders
type Publisher interface {
	PublishDocument(documentID string, event map[string]interface{}) error
}

type JobServer struct {
	server   *asynq.Server
	client   *asynq.Client
	renderer *Renderer
	log      *zap.Logger
}

func NewJobServer(redisAddr string, renderer *Renderer, log *zap.Logger) (*JobServer, *asynq.Client) {
	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	client := asynq.NewClient(redisOpt)

	return &JobServer{
		server:   server,
		client:   client,
		renderer: renderer,
		log:      log,
	}, client
}

func (js *JobServer) Start() error {
	mux := asynq.NewServeMux()

	// Register job handlers
	mux.HandleFunc(TypeDocumentRender, js.renderer.HandleRender)

	return js.server.Start(mux)
}

func (js *JobServer) Stop() {
	js.server.Shutdown()
	js.client.Close()
}

// Renderer builds the page plan of a document and stores it
type Renderer struct {
	docs  DocumentReader
	store ArtifactStore
	bus   Publisher
	log   *zap.Logger
}

func NewRenderer(docs DocumentReader, store ArtifactStore, bus Publisher, log *zap.Logger) *Renderer {
	return &Renderer{docs: docs, store: store, bus: bus, log: log}
}

// PagePlanObject is the storage key of a document's rendered page plan
func PagePlanObject(documentID string) string {
	return fmt.Sprintf("documents/%s/page-plan.json", documentID)
}

// Render stores the page plan of one document and returns its object name
func (r *Renderer) Render(ctx context.Context, documentID string) (string, error) {
	doc, err := r.docs.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("failed to get document: %w", err)
	}

	plan := layout.BuildPagePlan(doc.Schema, doc.Values)
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(plan); err != nil {
		return "", fmt.Errorf("failed to encode page plan: %w", err)
	}

	checksum, err := storage.CalculateSHA256(bytes.NewReader(buf.Bytes()))
	if err != nil {
		return "", fmt.Errorf("failed to hash page plan: %w", err)
	}

	object := PagePlanObject(documentID)
	if err := r.store.Put(ctx, object, &buf); err != nil {
		return "", fmt.Errorf("failed to store page plan: %w", err)
	}

	_ = r.bus.PublishDocument(documentID, map[string]interface{}{
		"type":       "document.rendered",
		"documentId": documentID,
		"object":     object,
		"sha256":     checksum,
		"rows":       len(plan.Rows),
	})
	return object, nil
}

func (r *Renderer) HandleRender(ctx context.Context, t *asynq.Task) error {
	documentID := string(t.Payload())

	object, err := r.Render(ctx, documentID)
	if err != nil {
		r.log.Error("Document render failed", zap.String("document_id", documentID), zap.Error(err))
		return err
	}

	r.log.Info("Document rendered", zap.String("document_id", documentID), zap.String("object", object))
	return nil
}

// Schedule jobs

func EnqueueRender(client *asynq.Client, documentID string) error {
	task := asynq.NewTask(TypeDocumentRender, []byte(documentID))
	_, err := client.Enqueue(task, asynq.Queue("default"), asynq.MaxRetry(5))
	return err
}
