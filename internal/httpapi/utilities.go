package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yourusername/paper-tasks/internal/apperr"
	"github.com/yourusername/paper-tasks/internal/auth"
	"github.com/yourusername/paper-tasks/internal/pdf"
)

func (h *Handler) merge(c *gin.Context) {
	strict, err := boolQuery(c, "strict")
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	h.run(c, pdf.Request{Operation: pdf.OperationMerge, Strict: strict})
}

func (h *Handler) lock(c *gin.Context) {
	h.run(c, pdf.Request{Operation: pdf.OperationLock, Password: c.Query("password")})
}

func (h *Handler) unlock(c *gin.Context) {
	h.run(c, pdf.Request{Operation: pdf.OperationUnlock, Password: c.Query("password")})
}

func (h *Handler) splitRange(c *gin.Context) {
	ranges, err := intListQuery(c, "ranges", apperr.CodeInvalidRange)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	mergeAfter, err := boolQuery(c, "merge_after")
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	h.run(c, pdf.Request{Operation: pdf.OperationSplitRange, Ranges: ranges, MergeAfter: mergeAfter})
}

func (h *Handler) splitPages(c *gin.Context) {
	pages, err := intListQuery(c, "pages", apperr.CodeInvalidInput)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	mergeAfter, err := boolQuery(c, "merge_after")
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	h.run(c, pdf.Request{Operation: pdf.OperationSplitPages, Pages: pages, MergeAfter: mergeAfter})
}

func (h *Handler) run(c *gin.Context, req pdf.Request) {
	taskID, ok := taskIDQuery(c)
	if !ok {
		h.respondWithError(c, apperr.New(apperr.CodeInvalidInput, "task_id を指定してください。", nil))
		return
	}
	task, err := h.tasks.Run(c.Request.Context(), taskID, auth.CurrentUser(c), req)
	if err != nil {
		h.respondWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, presentTask(task))
}

func boolQuery(c *gin.Context, key string) (bool, error) {
	raw := c.Query(key)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("%s には true または false を指定してください。", key), err)
	}
	return v, nil
}

// intListQuery は ?key=1&key=3 と ?key=1,3 の両方の形式を受け付けます。
func intListQuery(c *gin.Context, key string, code apperr.Code) ([]int, error) {
	var values []int
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			n, err := strconv.Atoi(part)
			if err != nil {
				return nil, apperr.New(code, fmt.Sprintf("%s に数値以外の値 %q が含まれています。", key, part), err)
			}
			values = append(values, n)
		}
	}
	return values, nil
}
