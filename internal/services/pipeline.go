package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Lllllllleong/filingmerger/internal/classify"
	"github.com/Lllllllleong/filingmerger/internal/fields"
	"github.com/Lllllllleong/filingmerger/internal/merge"
	"github.com/Lllllllleong/filingmerger/internal/models"
	"github.com/Lllllllleong/filingmerger/internal/pairing"
	"github.com/Lllllllleong/filingmerger/internal/pdftext"
	"github.com/Lllllllleong/filingmerger/internal/reconcile"
	"github.com/Lllllllleong/filingmerger/internal/report"
	"github.com/Lllllllleong/filingmerger/internal/status"
)

// Output tree for every run: AppFolder / Proceso_<timestamp> / {merged, errors, originals}.
const (
	AppFolder       = "PDF Merger App"
	RunFolderPrefix = "Proceso_"
	MergedFolder    = "PDFs Unificados"
	ErrorFolder     = "PDFs con Error"
	OriginalsFolder = "PDFs Originales"

	runTimestamp = "20060102_150405"
)

// Storage is where documents are read from and every output is written to.
type Storage interface {
	ListDocuments(ctx context.Context, folderID string) ([]models.FileRef, error)
	DownloadDocument(ctx context.Context, id string) ([]byte, error)
	UploadDocument(ctx context.Context, folderID, name string, data []byte, mimeType string) (models.FileRef, error)
	EnsureFolder(ctx context.Context, parentID, name string) (models.FileRef, error)
	ImportSpreadsheet(ctx context.Context, folderID, name string, xlsx []byte) (models.FileRef, error)
}

type MergePipelineConfig struct {
	// OutputRootID is the parent of AppFolder; empty means the storage root.
	OutputRootID string
	// Workers bounds extraction concurrency; zero means GOMAXPROCS.
	Workers int
	Now     func() time.Time
}

// MergePipeline runs one task from folder listing to final Result.
type MergePipeline struct {
	storage    Storage
	sheets     reconcile.Spreadsheet
	sink       status.Sink
	text       *pdftext.Extractor
	classifier *classify.Classifier
	fields     *fields.Extractor
	merger     *merge.Merger
	config     MergePipelineConfig
}

// NewMergePipeline wires the pipeline. sheets may be nil when runs never
// reconcile against a spreadsheet.
func NewMergePipeline(storage Storage, sheets reconcile.Spreadsheet, sink status.Sink, config MergePipelineConfig) *MergePipeline {
	if config.Workers <= 0 {
		config.Workers = runtime.GOMAXPROCS(0)
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MergePipeline{
		storage:    storage,
		sheets:     sheets,
		sink:       sink,
		text:       pdftext.New(),
		classifier: classify.New(),
		fields:     fields.NewExtractor(),
		merger:     merge.New(),
		config:     config,
	}
}

// runFolders are the folders created for one run.
type runFolders struct {
	run, merged, errored, originals models.FileRef
}

// run holds the mutable state of one task.
type run struct {
	job     models.Job
	logCtx  *slog.Logger
	tracker *Tracker
	folders runFolders
	rec     *reconcile.Reconciler

	mu        sync.Mutex
	docs      map[string]models.RawDocument
	errs      []models.ErrorEntry
	total     int
	merged    int
	reportRef models.FileRef
}

func (r *run) fail(e models.ErrorEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, e)
}

// Process runs job to completion. It always drives the task to a stored
// Result and progress 100, including on panics.
func (p *MergePipeline) Process(ctx context.Context, job models.Job) (result models.Result) {
	r := &run{
		job:     job,
		logCtx:  slog.With("taskId", job.TaskID, "folderId", job.Request.FolderID),
		tracker: NewTracker(p.sink, job.TaskID),
		docs:    make(map[string]models.RawDocument),
	}
	r.logCtx.Info("Starting merge run.", "hasSpreadsheet", job.Request.HasSpreadsheet())

	defer func() {
		if rec := recover(); rec != nil {
			result = p.handleError(ctx, r, "unexpected error", fmt.Errorf("panic: %v", rec))
		}
	}()

	if err := p.execute(ctx, r); err != nil {
		return p.handleError(ctx, r, "processing failed", err)
	}

	result = r.result()
	if err := r.tracker.Finish(ctx, result); err != nil {
		r.logCtx.Error("CRITICAL: Failed to finalize task status.", "error", err)
	}
	r.logCtx.Info("Merge run complete.", "documents", r.total, "merged", r.merged, "errors", len(r.errs))
	return result
}

func (p *MergePipeline) execute(ctx context.Context, r *run) error {
	if err := p.prepare(ctx, r); err != nil {
		return err
	}
	raw, err := p.fetch(ctx, r)
	if err != nil {
		return err
	}
	candidates, err := p.extract(ctx, r, raw)
	if err != nil {
		return err
	}

	r.logCtx.Info("Pairing documents.", "candidates", len(candidates))
	outcome := pairing.Pair(candidates)
	for _, e := range outcome.Errors {
		r.fail(e)
	}
	r.tracker.Report(ctx, PhasePairing, 1, 1)

	if err := p.mergePairs(ctx, r, outcome.Pairs); err != nil {
		return err
	}
	return p.finalize(ctx, r)
}

// prepare creates the output tree and opens the spreadsheet. Every failure
// here is fatal for the task.
func (p *MergePipeline) prepare(ctx context.Context, r *run) error {
	app, err := p.storage.EnsureFolder(ctx, p.config.OutputRootID, AppFolder)
	if err != nil {
		return fmt.Errorf("failed to prepare output folder: %w", err)
	}
	runName := RunFolderPrefix + p.config.Now().Format(runTimestamp)
	if r.folders.run, err = p.storage.EnsureFolder(ctx, app.ID, runName); err != nil {
		return fmt.Errorf("failed to create run folder: %w", err)
	}
	for _, sub := range []struct {
		name string
		dst  *models.FileRef
	}{
		{MergedFolder, &r.folders.merged},
		{ErrorFolder, &r.folders.errored},
		{OriginalsFolder, &r.folders.originals},
	} {
		if *sub.dst, err = p.storage.EnsureFolder(ctx, r.folders.run.ID, sub.name); err != nil {
			return fmt.Errorf("failed to create %q folder: %w", sub.name, err)
		}
	}
	r.logCtx = r.logCtx.With("runFolder", runName)
	r.logCtx.Info("Output folders ready.")

	req := r.job.Request
	if !req.HasSpreadsheet() {
		return nil
	}
	if p.sheets == nil {
		return errors.New("a spreadsheet was supplied but no spreadsheet backend is configured")
	}
	sheetID := req.SheetID
	if len(req.ExcelFile) > 0 {
		name := req.ExcelFileName
		if name == "" {
			name = "clientes.xlsx"
		}
		ref, err := p.storage.ImportSpreadsheet(ctx, r.folders.run.ID, name, req.ExcelFile)
		if err != nil {
			return fmt.Errorf("failed to import spreadsheet: %w", err)
		}
		sheetID = ref.ID
		r.logCtx.Info("Imported spreadsheet.", "sheetId", sheetID)
	}
	rec, err := reconcile.Open(ctx, p.sheets, sheetID)
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	r.rec = rec
	return nil
}

// fetch lists the input folder and downloads every document. Download
// failures are per-document errors.
func (p *MergePipeline) fetch(ctx context.Context, r *run) ([]models.RawDocument, error) {
	refs, err := p.storage.ListDocuments(ctx, r.job.Request.FolderID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	r.total = len(refs)
	r.logCtx.Info("Fetching documents.", "count", len(refs))

	docs := make([]models.RawDocument, 0, len(refs))
	for i, ref := range refs {
		content, err := p.storage.DownloadDocument(ctx, ref.ID)
		if err != nil {
			r.logCtx.Warn("Failed to download document.", "file", ref.Name, "error", err)
			e := models.NewErrorEntry(ref.Name, models.ExtractedFields{}, models.ReasonDownloadFailed)
			e.Detail = err.Error()
			r.fail(e)
		} else {
			docs = append(docs, models.RawDocument{ID: ref.ID, Name: ref.Name, Content: content, FileHash: hashOf(content)})
		}
		r.tracker.Report(ctx, PhaseFetching, i+1, len(refs))
	}
	r.tracker.Report(ctx, PhaseFetching, 1, 1)
	return docs, nil
}

// extract fans documents out over the worker pool. Per-document failures are
// recorded as errors; a panic in any worker fails the task.
func (p *MergePipeline) extract(ctx context.Context, r *run, docs []models.RawDocument) ([]pairing.Candidate, error) {
	r.logCtx.Info("Extracting documents.", "count", len(docs), "workers", p.config.Workers)

	var (
		mu         sync.Mutex
		candidates []pairing.Candidate
		completed  atomic.Int64
	)
	eg, gctx := errgroup.WithContext(ctx)
	eg.SetLimit(p.config.Workers)

	for _, doc := range docs {
		r.mu.Lock()
		r.docs[doc.Name] = doc
		r.mu.Unlock()

		eg.Go(func() (err error) {
			defer func() {
				if rec := recover(); rec != nil {
					err = fmt.Errorf("extracting %s: panic: %v", doc.Name, rec)
				}
				n := completed.Add(1)
				r.tracker.Report(gctx, PhaseExtracting, int(n), len(docs))
			}()

			c, ok := p.extractOne(gctx, r, doc)
			if ok {
				mu.Lock()
				candidates = append(candidates, c)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	r.tracker.Report(ctx, PhaseExtracting, 1, 1)

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Doc.Name < candidates[j].Doc.Name })
	return candidates, nil
}

func (p *MergePipeline) extractOne(ctx context.Context, r *run, doc models.RawDocument) (pairing.Candidate, bool) {
	logCtx := r.logCtx.With("file", doc.Name)

	if _, err := p.storage.UploadDocument(ctx, r.folders.originals.ID, doc.Name, doc.Content, models.MimePDF); err != nil {
		logCtx.Warn("Failed to upload original.", "error", err)
	}

	text := p.text.Extract(doc.Content)
	if strings.TrimSpace(text) == "" {
		logCtx.Warn("No text layer found.")
		r.fail(models.NewErrorEntry(doc.Name, models.ExtractedFields{}, models.ReasonExtractionFailed))
		return pairing.Candidate{}, false
	}

	kind := p.classifier.Classify(text, doc.Name)
	if kind == models.KindUnknown {
		logCtx.Warn("Could not classify document.")
		r.fail(models.NewErrorEntry(doc.Name, models.ExtractedFields{Kind: kind}, models.ReasonUnclassified))
		return pairing.Candidate{}, false
	}

	f := p.fields.Extract(kind, text)
	logCtx.Debug("Extracted fields.", "kind", f.Kind, "name", f.RawName, "folio", f.RegistryFolio)
	return pairing.Candidate{Doc: doc, Fields: f}, true
}

// mergePairs merges, reconciles and uploads each pair in order.
func (p *MergePipeline) mergePairs(ctx context.Context, r *run, pairs []models.MatchedPair) error {
	r.logCtx.Info("Merging pairs.", "count", len(pairs))
	for i, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return err
		}
		p.mergeOne(ctx, r, pair)
		r.tracker.Report(ctx, PhaseMerging, i+1, len(pairs))
	}
	r.tracker.Report(ctx, PhaseMerging, 1, 1)
	return nil
}

func (p *MergePipeline) mergeOne(ctx context.Context, r *run, pair models.MatchedPair) {
	logCtx := r.logCtx.With("name", pair.Identity, "acuse", pair.Acuse.Name, "demanda", pair.Demanda.Name)
	pairFields := models.ExtractedFields{RawName: pair.Name, RegistryFolio: pair.Folio, OfficeName: pair.Office}

	merged, err := p.merger.Merge(pair.Acuse.Content, pair.Demanda.Content)
	if err != nil {
		logCtx.Warn("Failed to merge pair.", "error", err)
		for _, doc := range []models.RawDocument{pair.Acuse, pair.Demanda} {
			e := models.NewErrorEntry(doc.Name, pairFields, models.ReasonMergeFailed)
			e.Detail = err.Error()
			r.fail(e)
		}
		return
	}

	clientID := ""
	if r.rec != nil {
		id, found, err := r.rec.Reconcile(pair)
		if err != nil {
			logCtx.Warn("Failed to reconcile pair.", "error", err)
			e := models.NewErrorEntry(pair.Acuse.Name, pairFields, models.ReasonSheetUpdateFailed)
			e.Detail = err.Error()
			r.fail(e)
			return
		}
		if !found {
			logCtx.Warn("Client not found in spreadsheet.")
			r.fail(models.NewErrorEntry(pair.Acuse.Name, pairFields, models.ReasonClientNotFound))
			return
		}
		clientID = id
	}

	name := models.ArtifactName(clientID, pair.Name) + ".pdf"
	if _, err := p.storage.UploadDocument(ctx, r.folders.merged.ID, name, merged, models.MimePDF); err != nil {
		logCtx.Warn("Failed to upload merged document.", "artifact", name, "error", err)
		if r.rec != nil {
			r.rec.Discard(pair)
		}
		e := models.NewErrorEntry(name, pairFields, models.ReasonUploadFailed)
		e.Detail = err.Error()
		r.fail(e)
		return
	}
	r.mu.Lock()
	r.merged++
	r.mu.Unlock()
	logCtx.Info("Merged pair uploaded.", "artifact", name)
}

// finalize flushes spreadsheet writes, files error documents and uploads the
// error report.
func (p *MergePipeline) finalize(ctx context.Context, r *run) error {
	if r.rec != nil && r.rec.Pending() > 0 {
		failed, err := r.rec.Flush(ctx)
		for _, pair := range failed {
			e := models.NewErrorEntry(pair.Acuse.Name, models.ExtractedFields{RawName: pair.Name, RegistryFolio: pair.Folio, OfficeName: pair.Office}, models.ReasonSheetUpdateFailed)
			if err != nil {
				e.Detail = err.Error()
			}
			r.fail(e)
		}
	}

	r.mu.Lock()
	sort.SliceStable(r.errs, func(i, j int) bool { return r.errs[i].DocumentName < r.errs[j].DocumentName })
	r.mu.Unlock()

	uploaded := make(map[string]bool)
	for _, e := range r.errs {
		doc, ok := r.docs[e.DocumentName]
		if !ok || uploaded[doc.Name] {
			continue
		}
		uploaded[doc.Name] = true
		if _, err := p.storage.UploadDocument(ctx, r.folders.errored.ID, doc.Name, doc.Content, models.MimePDF); err != nil {
			r.logCtx.Warn("Failed to file error document.", "file", doc.Name, "error", err)
		}
	}

	if len(r.errs) == 0 {
		return nil
	}
	xlsx, err := report.BuildErrorReport(r.errs)
	if err != nil {
		r.logCtx.Warn("Failed to build error report.", "error", err)
		return nil
	}
	ref, err := p.storage.UploadDocument(ctx, r.folders.run.ID, report.FileName(r.folders.run.Name), xlsx, report.MimeType)
	if err != nil {
		r.logCtx.Warn("Failed to upload error report.", "error", err)
		return nil
	}
	r.reportRef = ref
	return nil
}

func (r *run) result() models.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg := fmt.Sprintf("Processing complete: %d documents, %d merged pairs.", r.total, r.merged)
	if len(r.errs) > 0 {
		msg = fmt.Sprintf("Processing complete with some errors: %d documents, %d merged pairs, %d errors.", r.total, r.merged, len(r.errs))
	}
	return models.Result{
		Status:       models.StatusSuccess,
		Message:      msg,
		Errors:       fileErrors(r.errs),
		FolderName:   r.folders.run.Name,
		ReportFileID: r.reportRef.ID,
	}
}

// handleError turns a task-fatal failure into a stored error Result.
func (p *MergePipeline) handleError(ctx context.Context, r *run, message string, originalErr error) models.Result {
	fullError := fmt.Sprintf("%s: %v", message, originalErr)
	r.logCtx.Error(message, "error", originalErr)

	r.mu.Lock()
	result := models.Result{
		Status:     models.StatusError,
		Message:    fullError,
		Errors:     fileErrors(r.errs),
		FolderName: r.folders.run.Name,
	}
	r.mu.Unlock()

	if err := r.tracker.Finish(ctx, result); err != nil {
		r.logCtx.Error("CRITICAL: Failed to store error result after a processing error.", "updateError", err)
	}
	return result
}

func fileErrors(entries []models.ErrorEntry) []models.FileError {
	out := make([]models.FileError, 0, len(entries))
	for _, e := range entries {
		out = append(out, models.FileError{FileName: e.DocumentName, Message: e.Message()})
	}
	return out
}

func hashOf(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
