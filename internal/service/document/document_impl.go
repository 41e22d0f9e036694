package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/document-extractor/internal/agent"
	agentdoc "github.com/feichai0017/document-extractor/internal/agent/document"
	"github.com/feichai0017/document-extractor/internal/cache"
	"github.com/feichai0017/document-extractor/internal/models"
	"github.com/feichai0017/document-extractor/internal/utils/validator"
	"github.com/feichai0017/document-extractor/pkg/converters"
	"github.com/feichai0017/document-extractor/pkg/logger"
	"github.com/feichai0017/document-extractor/pkg/queue"
	"github.com/feichai0017/document-extractor/pkg/storage"
)

type DocumentService struct {
	processorFactory *agent.ProcessorFactory
	queue            queue.Queue
	storage          storage.Storage
	history          HistoryStore
	cache            cache.Cache
	validator        *validator.DocumentValidator
	logger           logger.Logger
	config           *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize     int64
	QueuePriority   int
	MaxConcurrent   int
	ProcessTimeout  time.Duration
	RetentionPeriod time.Duration
	// PageSeparator joins page texts in the result.
	PageSeparator string
	// CacheMaxEntries bounds the timestamp cache; zero disables eviction.
	CacheMaxEntries int
}

// DefaultConfig 默认配置
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		MaxFileSize:     50 * 1024 * 1024, // 50MB
		MaxConcurrent:   5,
		ProcessTimeout:  30 * time.Minute,
		RetentionPeriod: 24 * time.Hour,
		PageSeparator:   "\n",
		CacheMaxEntries: 1000,
	}
}

// Deps are the collaborators of the service.
type Deps struct {
	Factory *agent.ProcessorFactory
	Queue   queue.Queue
	Storage storage.Storage
	History HistoryStore
	Cache   cache.Cache
	Logger  logger.Logger
}

func NewService(deps Deps, cfg *ServiceConfig) *DocumentService {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	vcfg := validator.DefaultConfig()
	vcfg.MaxFileSize = cfg.MaxFileSize

	return &DocumentService{
		processorFactory: deps.Factory,
		queue:            deps.Queue,
		storage:          deps.Storage,
		history:          deps.History,
		cache:            deps.Cache,
		validator:        validator.NewDocumentValidator(deps.Logger, vcfg),
		logger:           deps.Logger.Named("document"),
		config:           cfg,
	}
}

func uploadKey(taskID, filename string) string {
	return "uploads/" + taskID + strings.ToLower(filepath.Ext(filename))
}

func resultKey(taskID string) string {
	return fmt.Sprintf("result:%s", taskID)
}

// ProcessFile 处理单个文件
func (s *DocumentService) ProcessFile(
	ctx context.Context,
	file io.Reader,
	header *multipart.FileHeader,
	options map[string]string,
) (*models.ProcessingTask, error) {
	s.logger.Info("Starting file processing",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
	)

	data, err := s.readLimited(file)
	if err != nil {
		return nil, err
	}

	// 验证文件
	if err := s.validator.Validate(header.Filename, data).Err(); err != nil {
		s.logger.Warn("File validation failed",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, err
	}
	// reject bad overrides before anything is stored
	if _, err := agentdoc.ParseOptions(s.processorFactory.Defaults(), options); err != nil {
		return nil, err
	}

	taskID := uuid.New().String()
	now := time.Now()
	ext := strings.ToLower(filepath.Ext(header.Filename))

	task := &models.ProcessingTask{
		ID:        taskID,
		Status:    models.StatusPending,
		Type:      queue.TaskTypeDocumentProcess,
		Priority:  s.config.QueuePriority,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]string{
			"filename": header.Filename,
			"size":     strconv.Itoa(len(data)),
			"type":     ext,
		},
	}

	// 存储文件
	fileID, err := s.storage.Store(ctx, bytes.NewReader(data), uploadKey(taskID, header.Filename))
	if err != nil {
		s.logger.Error("Failed to store file",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	if err := s.remember(ctx, taskID, now); err != nil {
		return nil, err
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     task.Type,
		Priority: task.Priority,
		Payload: queue.DocumentPayload{
			FileID:   fileID,
			Filename: header.Filename,
			Size:     int64(len(data)),
			Type:     ext,
			Options:  options,
		},
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
	}

	// 加入处理队列
	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		s.forget(ctx, taskID, fileID)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    taskID,
		Status:    string(models.StatusPending),
		StartedAt: now,
	})

	s.logger.Info("File processing task created",
		logger.String("taskId", taskID),
		logger.String("filename", header.Filename),
	)
	return task, nil
}

// ProcessBatch 批量处理文件. Tasks keep the order of files.
func (s *DocumentService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader, options map[string]string) ([]*models.ProcessingTask, error) {
	tasks := make([]*models.ProcessingTask, len(files))

	g, ctx := errgroup.WithContext(ctx)
	if s.config.MaxConcurrent > 0 {
		g.SetLimit(s.config.MaxConcurrent)
	}

	for i, header := range files {
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			task, err := s.ProcessFile(ctx, file, header, options)
			if err != nil {
				return fmt.Errorf("failed to process file %s: %w", header.Filename, err)
			}
			tasks[i] = task
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		// 返回已处理的任务和错误
		done := make([]*models.ProcessingTask, 0, len(tasks))
		for _, t := range tasks {
			if t != nil {
				done = append(done, t)
			}
		}
		return done, err
	}
	return tasks, nil
}

// HandleDocument 实现文档处理逻辑
func (s *DocumentService) HandleDocument(ctx context.Context, task *queue.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}

	log := logger.NewContextLogger(s.logger).FromContext(logger.WithValue(ctx, logger.TaskIDKey, task.ID))
	log.Info("Processing document", logger.String("filename", task.Payload.Filename))

	started := time.Now()
	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:    task.ID,
		Status:    string(models.StatusRunning),
		StartedAt: started,
	})

	doc, err := s.handle(ctx, task)
	if err != nil && errors.Is(ctx.Err(), context.Canceled) {
		// CancelTask already recorded the final status
		log.Info("Document processing cancelled", logger.Error(err))
		return fmt.Errorf("document processing cancelled: %w", ctx.Err())
	}
	if err != nil {
		log.Error("Document processing failed", logger.Error(err))
		s.saveStatus(ctx, &queue.TaskStatus{
			TaskID:     task.ID,
			Status:     string(models.StatusFailed),
			Error:      err.Error(),
			StartedAt:  started,
			FinishedAt: time.Now(),
		})
		return err
	}

	finished := time.Now()
	if err := s.history.MarkProcessed(ctx, task.ID, strings.TrimPrefix(task.Payload.Type, "."), finished); err != nil {
		log.Warn("Failed to update history", logger.Error(err))
	}

	s.saveStatus(ctx, &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     string(models.StatusCompleted),
		Progress:   1.0,
		StartedAt:  started,
		FinishedAt: finished,
	})

	log.Info("Document processing completed",
		logger.Int("chunkCount", len(doc.Content)),
		logger.Int64("elapsedMs", doc.Metadata.ProcessingMs),
	)
	return nil
}

func (s *DocumentService) handle(ctx context.Context, task *queue.Task) (*converters.ProcessedDocument, error) {
	data, err := storage.ReadAll(ctx, s.storage, task.Payload.FileID)
	if err != nil {
		return nil, fmt.Errorf("failed to get file: %w", err)
	}

	if s.config.ProcessTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.ProcessTimeout)
		defer cancel()
	}

	doc, err := s.extract(ctx, task.Payload.Filename, task.Payload.Type, data, task.Payload.Options)
	if err != nil {
		return nil, err
	}
	doc.TaskID = task.ID

	// 序列化并存储结果
	resultData, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	if _, err := s.storage.Store(ctx, bytes.NewReader(resultData), resultKey(task.ID)); err != nil {
		return nil, fmt.Errorf("failed to store result: %w", err)
	}
	return doc, nil
}

// extract runs the processor for fileType over data and converts the chunks.
func (s *DocumentService) extract(ctx context.Context, filename, fileType string, data []byte, options map[string]string) (*converters.ProcessedDocument, error) {
	start := time.Now()

	processor, err := s.processorFactory.GetProcessor(fileType)
	if err != nil {
		return nil, fmt.Errorf("failed to get processor: %w", err)
	}
	opts, err := agentdoc.ParseOptions(s.processorFactory.Defaults(), options)
	if err != nil {
		return nil, err
	}

	chunks, err := processor.Process(ctx, bytes.NewReader(data), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to process document: %w", err)
	}

	converter := converters.NewJSONConverter(s.config.PageSeparator)
	doc, err := converter.Convert(chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to convert document: %w", err)
	}

	doc.ProcessedAt = time.Now()
	doc.Metadata.FileName = filename
	doc.Metadata.FileType = fileType
	doc.Metadata.FileSize = int64(len(data))
	doc.Metadata.Checksum = converters.MD5Hex(converters.EncodeBase64(data))
	doc.Metadata.Language = opts.OCR.Language
	doc.Metadata.ProcessingMs = time.Since(start).Milliseconds()
	return doc, nil
}

// Extract 同步提取文本
func (s *DocumentService) Extract(ctx context.Context, filename string, data []byte, options map[string]string) (*converters.ProcessedDocument, error) {
	if err := s.validator.Validate(filename, data).Err(); err != nil {
		return nil, err
	}

	id := uuid.New().String()
	now := time.Now()
	if err := s.remember(ctx, id, now); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	doc, err := s.extract(ctx, filename, ext, data, options)
	if err != nil {
		s.logger.Warn("Extraction failed",
			logger.String("id", id),
			logger.String("filename", filename),
			logger.Error(err))
		return nil, err
	}
	doc.TaskID = id

	if err := s.history.MarkProcessed(ctx, id, strings.TrimPrefix(ext, "."), doc.ProcessedAt); err != nil {
		s.logger.Warn("Failed to update history", logger.String("id", id), logger.Error(err))
	}
	return doc, nil
}

// remember records a new document in the history table and the timestamp
// cache, evicting the oldest cache entries beyond the configured bound.
func (s *DocumentService) remember(ctx context.Context, id string, at time.Time) error {
	if err := s.history.Put(ctx, id, at); err != nil {
		return fmt.Errorf("failed to record history: %w", err)
	}
	if s.cache == nil {
		return nil
	}

	if _, err := s.cache.Set(ctx, id); err != nil {
		s.logger.Warn("Failed to cache timestamp", logger.String("id", id), logger.Error(err))
		return nil
	}
	evicted, err := cache.Evict(ctx, s.cache, s.config.CacheMaxEntries)
	if err != nil {
		s.logger.Warn("Cache eviction failed", logger.Error(err))
	}
	if len(evicted) > 0 {
		s.logger.Debug("Evicted cache entries", logger.Strings("ids", evicted))
	}
	return nil
}

// forget undoes what ProcessFile stored for a task that never reached the
// queue.
func (s *DocumentService) forget(ctx context.Context, id, fileID string) {
	if err := s.storage.Delete(ctx, fileID); err != nil {
		s.logger.Warn("Failed to delete upload", logger.String("key", fileID), logger.Error(err))
	}
	if err := s.history.Delete(ctx, id); err != nil {
		s.logger.Warn("Failed to delete history record", logger.String("id", id), logger.Error(err))
	}
	if s.cache != nil {
		if _, err := s.cache.Delete(ctx, id); err != nil {
			s.logger.Warn("Failed to delete cache entry", logger.String("id", id), logger.Error(err))
		}
	}
}

func (s *DocumentService) saveStatus(ctx context.Context, status *queue.TaskStatus) {
	if err := s.queue.SaveFinalStatus(ctx, status); err != nil {
		s.logger.Error("Failed to save task status",
			logger.String("taskId", status.TaskID),
			logger.String("status", status.Status),
			logger.Error(err),
		)
	}
}

func (s *DocumentService) readLimited(file io.Reader) ([]byte, error) {
	limit := s.config.MaxFileSize
	if limit <= 0 {
		return io.ReadAll(file)
	}
	// one extra byte lets the validator see the overflow
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// GetProcessingStatus 获取处理状态
func (s *DocumentService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    models.ParseStatus(status.Status),
		Type:      queue.TaskTypeDocumentProcess,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  make(map[string]string),
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetProcessedDocument 获取处理结果
func (s *DocumentService) GetProcessedDocument(ctx context.Context, taskID string) (*converters.ProcessedDocument, error) {
	status, err := s.GetProcessingStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if status.Status != models.StatusCompleted {
		return nil, fmt.Errorf("%w: %s", ErrNotCompleted, status.Status)
	}

	reader, err := s.storage.Get(ctx, resultKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}
	defer reader.Close()

	var result converters.ProcessedDocument
	if err := json.NewDecoder(reader).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode result: %w", err)
	}
	return &result, nil
}

// CancelTask 取消任务
func (s *DocumentService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	s.logger.Info("Task cancelled", logger.String("taskId", taskID))
	return nil
}

// GetHistory 获取历史记录
func (s *DocumentService) GetHistory(ctx context.Context, id string) (*models.HistoryRecord, error) {
	return s.history.Get(ctx, id)
}

// CleanupTasks 清理过期任务
func (s *DocumentService) CleanupTasks(ctx context.Context) error {
	threshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, threshold); err != nil {
		return fmt.Errorf("failed to cleanup storage: %w", err)
	}
	s.logger.Info("Completed tasks cleanup", logger.Time("threshold", threshold))
	return nil
}

var _ DocumentProcessor = (*DocumentService)(nil)
