package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"rostrum/internal/daemon"
	"rostrum/internal/logging"
	"rostrum/internal/logs"
	"rostrum/internal/registry"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Rostrum", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun rostrum daemon stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func convertVideo(video *registry.Video) VideoSummary {
	return VideoSummary{
		ID:           video.ID,
		Source:       string(video.Source),
		Title:        video.Title,
		Committee:    video.Committee,
		PageURL:      video.PageURL,
		RecordedAt:   formatTime(video.RecordedAt),
		StreamURL:    video.StreamURL,
		MediaPath:    video.MediaPath,
		TranscriptID: video.TranscriptID,
		Stage:        string(video.Stage),
		AttemptCount: video.AttemptCount,
		LeaseOwner:   video.LeaseOwner,
		FailedStage:  string(video.FailedStage),
		LastError:    video.LastError,
		CreatedAt:    formatTime(video.CreatedAt),
		UpdatedAt:    formatTime(video.UpdatedAt),
	}
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.log().Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.log().Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status(s.ctx)
	resp.Running = status.Running
	resp.RegistryDBPath = status.RegistryDBPath
	resp.LockPath = status.LockFilePath
	resp.LastError = status.Workflow.LastError
	resp.PID = status.PID
	resp.StageStats = make(map[string]int, len(status.Workflow.StageStats))
	for stage, count := range status.Workflow.StageStats {
		resp.StageStats[string(stage)] = count
	}
	if len(status.Workflow.StepHealth) > 0 {
		names := make([]string, 0, len(status.Workflow.StepHealth))
		for name := range status.Workflow.StepHealth {
			names = append(names, name)
		}
		sort.Strings(names)
		resp.StepHealth = make([]StepHealth, 0, len(names))
		for _, name := range names {
			health := status.Workflow.StepHealth[name]
			resp.StepHealth = append(resp.StepHealth, StepHealth{
				Name:   name,
				Ready:  health.Ready,
				Detail: health.Detail,
			})
		}
	}
	return nil
}

func (s *service) Discover(req DiscoverRequest, resp *DiscoverResponse) error {
	s.log().Debug("discovery sweep requested", logging.Int("days", req.Days))
	summary, err := s.daemon.DiscoverNow(s.ctx, req.Days)
	if err != nil {
		return err
	}
	resp.Summary = summary.String()
	resp.TotalFound = summary.TotalFound()
	resp.TotalNew = summary.TotalNew()
	resp.PerSource = make([]SourceReport, 0, len(summary.PerSource))
	for _, result := range summary.PerSource {
		report := SourceReport{
			Source: string(result.Source),
			Found:  result.Found,
			New:    result.New,
		}
		if result.Err != nil {
			report.Error = result.Err.Error()
		}
		resp.PerSource = append(resp.PerSource, report)
	}
	s.log().Info("discovery sweep completed via IPC",
		logging.String(logging.FieldEventType, "discovery_sweep"),
		logging.Int("new_count", resp.TotalNew))
	return nil
}

func (s *service) QueueList(req QueueListRequest, resp *QueueListResponse) error {
	stages := make([]registry.Stage, 0, len(req.Stages))
	for _, raw := range req.Stages {
		parsed, ok := registry.ParseStage(raw)
		if !ok {
			continue
		}
		stages = append(stages, parsed)
	}
	videos, err := s.daemon.ListVideos(s.ctx, stages)
	if err != nil {
		return err
	}
	resp.Videos = make([]VideoSummary, 0, len(videos))
	for _, video := range videos {
		if video == nil {
			continue
		}
		resp.Videos = append(resp.Videos, convertVideo(video))
	}
	return nil
}

func (s *service) QueueDescribe(req QueueDescribeRequest, resp *QueueDescribeResponse) error {
	id := strings.TrimSpace(req.ID)
	if id == "" {
		return errors.New("queue describe requires a video id")
	}
	video, err := s.daemon.GetVideo(s.ctx, id)
	if err != nil {
		return err
	}
	if video == nil {
		return fmt.Errorf("video %s not found", id)
	}
	resp.Video = convertVideo(video)
	return nil
}

func (s *service) QueueRetry(req QueueRetryRequest, resp *QueueRetryResponse) error {
	s.log().Debug("queue retry requested", logging.Int("video_count", len(req.IDs)))
	updated, err := s.daemon.RetryFailed(s.ctx, req.IDs)
	if err != nil {
		return err
	}
	resp.Updated = updated
	s.log().Info("failed videos requeued",
		logging.String(logging.FieldEventType, "queue_retry"),
		logging.Int64("updated_count", updated))
	return nil
}

func (s *service) QueueHealth(_ QueueHealthRequest, resp *QueueHealthResponse) error {
	health, err := s.daemon.RegistryHealth(s.ctx)
	if err != nil {
		return err
	}
	resp.Total = health.Total
	resp.Ready = health.Ready
	resp.Processing = health.Processing
	resp.Failed = health.Failed
	resp.Completed = health.Completed
	return nil
}

func (s *service) DatabaseHealth(_ DatabaseHealthRequest, resp *DatabaseHealthResponse) error {
	health, err := s.daemon.DatabaseHealth(s.ctx)
	if err != nil && health.Error == "" {
		return err
	}
	resp.DBPath = health.DBPath
	resp.DatabaseExists = health.DatabaseExists
	resp.DatabaseReadable = health.DatabaseReadable
	resp.SchemaVersion = health.SchemaVersion
	resp.TableExists = health.TableExists
	resp.ColumnsPresent = append(resp.ColumnsPresent, health.ColumnsPresent...)
	resp.MissingColumns = append(resp.MissingColumns, health.MissingColumns...)
	resp.IntegrityCheck = health.IntegrityCheck
	resp.TotalVideos = health.TotalVideos
	resp.Error = health.Error
	if err != nil {
		return err
	}
	return nil
}

func (s *service) TranscriptSearch(req SearchRequest, resp *SearchResponse) error {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return errors.New("transcript search requires a query")
	}
	hits, err := s.daemon.SearchTranscripts(s.ctx, query, req.Limit)
	if err != nil {
		return err
	}
	resp.Hits = make([]SearchHit, 0, len(hits))
	for _, hit := range hits {
		resp.Hits = append(resp.Hits, SearchHit{
			TranscriptID: hit.TranscriptID,
			VideoID:      hit.VideoID,
			Title:        hit.Title,
			Committee:    hit.Committee,
			RecordedAt:   formatTime(hit.RecordedAt),
			Provider:     hit.Provider,
			Snippet:      hit.Snippet,
		})
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	sent, message, err := s.daemon.TestNotification(s.ctx)
	resp.Sent = sent
	resp.Message = message
	return err
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
