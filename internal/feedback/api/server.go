package api

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"page-feedback/internal/feedback/helper"
	"page-feedback/internal/feedback/ingress"
	"page-feedback/internal/feedback/model"
	"page-feedback/internal/middleware/logger"
)

const maxBodyBytes = 2 << 20

// Response messages kept byte-compatible with the existing form clients.
const (
	msgProblemReceived = "Data received..."
	msgTopTaskReceived = "Data received."
	msgOK              = "OK"
	errBadData         = "Bad data...."
	errInternal        = "Internal server error"
)

// FeedbackReader serves the read-back routes.
type FeedbackReader interface {
	ListProblems(ctx context.Context, q helper.ProblemQuery) ([]model.Problem, int64, error)
	ListTopTasks(ctx context.Context, q helper.TopTaskQuery) ([]model.TopTask, int64, error)
}

type Server struct {
	Log      *zap.Logger
	Problems *ingress.ProblemNormalizer
	TopTasks *ingress.TopTaskNormalizer
	Reader   FeedbackReader
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(logger.GinZap(s.Log), gin.CustomRecovery(s.recover))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	r.POST("/problem", s.postProblem)
	r.POST("/problem/email", s.postProblemEmail)
	r.POST("/problem/raw", s.postProblemRaw)
	r.POST("/toptask", s.postTopTask)
	r.POST("/toptask/email", s.postTopTaskEmail)

	r.GET("/problems", s.listProblems) // ?date=YYYY-MM-DD&institution=&page=1&limit=20
	r.GET("/toptasks", s.listTopTasks) // ?date=YYYY-MM-DD&page=1&limit=20
	return r
}

func (s *Server) recover(c *gin.Context, rec any) {
	s.Log.Error("Panic in handler",
		zap.String("path", c.Request.URL.Path),
		zap.Any("panic", rec),
		zap.Stack("stack"),
	)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": errInternal})
}

func (s *Server) readBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		s.Log.Warn("Failed to read request body", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadData})
		return nil, false
	}
	return body, true
}

func (s *Server) postProblem(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	form, err := ingress.ParseForm(body, c.ContentType())
	if err != nil {
		s.Log.Warn("Unparseable problem form", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadData})
		return
	}

	_, err = s.Problems.SubmitForm(c.Request.Context(), form, c.Request.UserAgent())
	var missing *ingress.MissingFieldsError
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": msgProblemReceived})
	case errors.As(err, &missing):
		c.JSON(http.StatusBadRequest, gin.H{"error": missing.Error()})
	case errors.Is(err, ingress.ErrBadData):
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadData})
	default:
		s.internalError(c, "Error processing form submission", err)
	}
}

func (s *Server) postProblemEmail(c *gin.Context) {
	raw, ok := s.emailBody(c)
	if !ok {
		return
	}
	if _, err := s.Problems.SubmitEmail(c.Request.Context(), raw); err != nil {
		s.internalError(c, "Error processing problem email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgOK})
}

// postProblemRaw takes an already delimited payload, base64-wrapped when the
// X-Body-Encoding header says so.
func (s *Server) postProblemRaw(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	text := string(body)
	if strings.EqualFold(c.GetHeader("X-Body-Encoding"), "base64") {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
		if err != nil {
			s.Log.Warn("Invalid base64 body", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": errBadData})
			return
		}
		text = string(decoded)
	}
	if _, err := s.Problems.SubmitRaw(c.Request.Context(), text); err != nil {
		s.internalError(c, "Error processing raw problem", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgOK})
}

func (s *Server) postTopTask(c *gin.Context) {
	body, ok := s.readBody(c)
	if !ok {
		return
	}
	_, err := s.TopTasks.SubmitForm(c.Request.Context(), body, c.ContentType(), c.Request.UserAgent())
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"message": msgTopTaskReceived})
	case errors.Is(err, ingress.ErrBadBody):
		c.JSON(http.StatusBadRequest, gin.H{"error": errBadData})
	default:
		s.internalError(c, "Error processing survey form", err)
	}
}

func (s *Server) postTopTaskEmail(c *gin.Context) {
	raw, ok := s.emailBody(c)
	if !ok {
		return
	}
	if _, err := s.TopTasks.SubmitEmail(c.Request.Context(), raw); err != nil {
		s.internalError(c, "Error processing top task email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msgOK})
}

// emailBody unwraps the raw MIME message. An empty notification is answered
// here with 200 and ok=false.
func (s *Server) emailBody(c *gin.Context) ([]byte, bool) {
	body, ok := s.readBody(c)
	if !ok {
		return nil, false
	}
	raw, ok := ingress.UnwrapEmail(body)
	if !ok {
		s.Log.Warn("No content to queue", zap.String("path", c.Request.URL.Path))
		c.JSON(http.StatusOK, gin.H{"message": msgOK})
		return nil, false
	}
	return raw, true
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.Log.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": errInternal})
}

func pageFromQuery(c *gin.Context) helper.Page {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(helper.DefaultPageLimit)))
	return helper.NewPage(page, limit)
}

func dateFromQuery(c *gin.Context) string {
	if d := c.Query("date"); d != "" {
		return d
	}
	return time.Now().UTC().Format("2006-01-02")
}

func (s *Server) listProblems(c *gin.Context) {
	q := helper.ProblemQuery{
		Date:        dateFromQuery(c),
		Institution: c.Query("institution"),
		Page:        pageFromQuery(c),
	}
	data, total, err := s.Reader.ListProblems(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "Failed to list problems", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":  q.Date,
		"total": total,
		"data":  data,
		"page":  q.Page.Number,
		"limit": q.Page.Limit,
	})
}

func (s *Server) listTopTasks(c *gin.Context) {
	q := helper.TopTaskQuery{
		Date: dateFromQuery(c),
		Page: pageFromQuery(c),
	}
	data, total, err := s.Reader.ListTopTasks(c.Request.Context(), q)
	if err != nil {
		s.internalError(c, "Failed to list top tasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"date":  q.Date,
		"total": total,
		"data":  data,
		"page":  q.Page.Number,
		"limit": q.Page.Limit,
	})
}
