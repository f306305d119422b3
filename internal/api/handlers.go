package api

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/robot-workbench/backend/internal/models"
	"github.com/robot-workbench/backend/internal/parser"
	"github.com/robot-workbench/backend/internal/session"
	"github.com/robot-workbench/backend/internal/storage"
	"github.com/vmihailenco/msgpack/v5"
)

// Handler handles API requests.
type Handler struct {
	store   storage.Store
	session *session.Manager
	catalog *parser.Catalog

	currentPaletteID string
	currentPalette   *parser.Palette
}

// NewHandler creates a new API handler. The catalog may be nil when the
// persistent catalog is disabled.
func NewHandler(store storage.Store, session *session.Manager, catalog *parser.Catalog) *Handler {
	return &Handler{
		store:   store,
		session: session,
		catalog: catalog,
	}
}

// HandleHealth returns server health status.
func (h *Handler) HandleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// HandleGetFormats returns the decoder names the server understands,
// in auto-detection probe order.
func (h *Handler) HandleGetFormats(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"formats": h.session.Registry().Names(),
	})
}

// HandleUploadFile accepts a robot description file as base64 JSON and saves
// it to storage.
func (h *Handler) HandleUploadFile(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
		Data string `json:"data"` // Base64-encoded file content
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	if req.Name == "" || req.Data == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and data are required"})
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid base64 data"})
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to save file: %v", err)})
	}

	return c.JSON(http.StatusCreated, info)
}

// HandleRecentFiles returns a list of recently uploaded description files.
func (h *Handler) HandleRecentFiles(c echo.Context) error {
	files, err := h.store.List(50) // Fetch more to allow for filtering
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list files"})
	}

	var descFiles []*models.FileInfo
	for _, f := range files {
		// Exclude palette uploads; those live under the palette endpoints
		if !strings.HasSuffix(strings.ToLower(f.Name), ".yaml") &&
			!strings.HasSuffix(strings.ToLower(f.Name), ".yml") {
			descFiles = append(descFiles, f)
		}
	}

	if len(descFiles) > 20 {
		descFiles = descFiles[:20]
	}

	return c.JSON(http.StatusOK, descFiles)
}

// HandleGetFile returns metadata for a specific file.
func (h *Handler) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found"})
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile removes a file from storage.
func (h *Handler) HandleDeleteFile(c echo.Context) error {
	id := c.Param("id")
	if err := h.store.Delete(id); err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found or could not be deleted"})
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile updates the name of a file.
func (h *Handler) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	var req struct {
		Name string `json:"name"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if req.Name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "file not found or could not be renamed"})
	}

	return c.JSON(http.StatusOK, info)
}

// HandleStartDecode starts a decode session for an uploaded file.
// Accepts {"fileId": "id"}; format auto-detection runs server side.
func (h *Handler) HandleStartDecode(c echo.Context) error {
	var req struct {
		FileID string `json:"fileId"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.FileID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "fileId is required"})
	}

	info, err := h.store.Get(req.FileID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("file not found: %s", req.FileID)})
	}

	data, err := h.store.Read(req.FileID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to read file: %s", req.FileID)})
	}

	sess, err := h.session.StartSession(info.ID, info.Name, data)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to start session: %v", err)})
	}

	h.store.SetStatus(info.ID, "decoding")

	return c.JSON(http.StatusAccepted, sess)
}

// HandleDecodeStatus returns the status of a decode session, including
// any warnings the decoder reported.
func (h *Handler) HandleDecodeStatus(c echo.Context) error {
	id := c.Param("sessionId")
	sess, ok := h.session.GetSession(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	// Touch session to prevent cleanup while being viewed
	h.session.TouchSession(id)
	return c.JSON(http.StatusOK, sess)
}

// HandleSessionKeepAlive allows clients to explicitly keep a session alive.
// Useful for long-running viewer sessions that are between model requests.
func (h *Handler) HandleSessionKeepAlive(c echo.Context) error {
	id := c.Param("sessionId")
	if !h.session.TouchSession(id) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// HandleGetModel returns the canonical robot model for a completed session,
// together with the breadth-first traversal order the viewer renders in.
func (h *Handler) HandleGetModel(c echo.Context) error {
	id := c.Param("sessionId")
	robot, ok := h.session.GetRobot(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or not complete"})
	}

	walk, err := robot.WalkOrder()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to walk model: %v", err)})
	}

	h.session.TouchSession(id)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"robot": robot,
		"walk":  walk,
	})
}

// HandleGetModelMsgpack returns the canonical robot model in MessagePack
// format. MessagePack is 30-50% smaller than JSON for dense models.
func (h *Handler) HandleGetModelMsgpack(c echo.Context) error {
	id := c.Param("sessionId")
	robot, ok := h.session.GetRobot(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or not complete"})
	}

	walk, err := robot.WalkOrder()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to walk model: %v", err)})
	}

	data, err := msgpack.Marshal(map[string]interface{}{
		"robot": robot,
		"walk":  walk,
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to encode msgpack"})
	}

	h.session.TouchSession(id)

	return c.Blob(http.StatusOK, "application/msgpack", data)
}

// HandleExportURDF serializes the decoded model back to URDF.
// ?mode=standard (default) emits plain URDF; ?mode=extended adds the
// hardware binding extension elements.
func (h *Handler) HandleExportURDF(c echo.Context) error {
	id := c.Param("sessionId")

	mode := parser.EncodeStandard
	switch c.QueryParam("mode") {
	case "", "standard":
	case "extended":
		mode = parser.EncodeExtended
	default:
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "mode must be 'standard' or 'extended'"})
	}

	robot, ok := h.session.GetRobot(id)
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found or not complete"})
	}

	start := time.Now()
	out, err := parser.EncodeURDF(robot, mode)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to encode URDF: %v", err)})
	}

	h.session.TouchSession(id)

	fmt.Printf("[API] ExportURDF: session=%s mode=%s done in %v (%d bytes)\n",
		id[:8], c.QueryParam("mode"), time.Since(start), len(out))

	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`attachment; filename="%s.urdf"`, robot.Name))
	return c.Blob(http.StatusOK, "application/xml", out)
}

// HandleUploadPalette accepts a YAML material palette as base64 JSON,
// validates it and installs it on the decoder registry.
func (h *Handler) HandleUploadPalette(c echo.Context) error {
	var req struct {
		Name string `json:"name"`
		Data string `json:"data"` // Base64-encoded file content
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
	}

	if req.Name == "" || req.Data == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name and data are required"})
	}

	decoded, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid base64 data"})
	}

	palette, err := parser.ParsePaletteFromBytes(decoded)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("invalid YAML format: %v", err)})
	}

	info, err := h.store.SaveBytes(req.Name, decoded)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to save palette file: %v", err)})
	}

	h.session.Registry().SetPalette(palette)
	h.currentPaletteID = info.ID
	h.currentPalette = palette

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"id":         info.ID,
		"name":       info.Name,
		"uploadedAt": info.UploadedAt.Format(time.RFC3339),
		"colorCount": len(palette.Colors),
	})
}

// HandleGetPalette returns the currently active material palette.
func (h *Handler) HandleGetPalette(c echo.Context) error {
	if h.currentPaletteID == "" || h.currentPalette == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{
			"loaded": false,
			"colors": map[string]string{},
		})
	}

	response := map[string]interface{}{
		"loaded": true,
		"id":     h.currentPaletteID,
		"name":   "Unknown",
		"colors": h.currentPalette.Colors,
	}
	if info, err := h.store.Get(h.currentPaletteID); err == nil {
		response["name"] = info.Name
	}

	return c.JSON(http.StatusOK, response)
}

// HandleCatalogRecent returns the most recently decoded robots from the
// persistent catalog.
func (h *Handler) HandleCatalogRecent(c echo.Context) error {
	if h.catalog == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "catalog not available"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.catalog.Recent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("catalog query failed: %v", err)})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}

// HandleCatalogSearch returns catalog entries whose robot name matches the
// ?name= query.
func (h *Handler) HandleCatalogSearch(c echo.Context) error {
	if h.catalog == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "catalog not available"})
	}

	name := c.QueryParam("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "name is required"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := h.catalog.Search(c.Request().Context(), name, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("catalog search failed: %v", err)})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"entries": entries,
		"total":   len(entries),
	})
}
