package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/connvault/connvault/internal/connections"
	"github.com/connvault/connvault/internal/models"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// ConnectionHandler serves the encrypted connection catalog endpoints.
type ConnectionHandler struct {
	svc      *connections.Service
	dropPath string
}

// NewConnectionHandler constructs a ConnectionHandler. dropPath is the
// fallback import bundle location when no file is uploaded.
func NewConnectionHandler(svc *connections.Service, dropPath string) *ConnectionHandler {
	return &ConnectionHandler{svc: svc, dropPath: dropPath}
}

// listConnectionsQuery defines query parameters for the list endpoint.
type listConnectionsQuery struct {
	Company        string `form:"company"`
	Site           string `form:"site"`
	Application    string `form:"application"`
	Service        string `form:"service"`
	ServerType     string `form:"server_type"`
	Mode           string `form:"mode"`
	HasCredentials string `form:"has_credentials"`
	Page           int    `form:"page,default=1"`
	PerPage        int    `form:"per_page,default=50"`
}

// List returns one page of connections with sensitive fields omitted.
func (h *ConnectionHandler) List(c *gin.Context) {
	var q listConnectionsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	filter := connections.ListFilter{
		Company:     q.Company,
		Site:        q.Site,
		Application: q.Application,
		Service:     q.Service,
		ServerType:  q.ServerType,
		Mode:        q.Mode,
		Page:        q.Page,
		PerPage:     q.PerPage,
	}
	switch q.HasCredentials {
	case "true":
		yes := true
		filter.HasCredentials = &yes
	case "false":
		no := false
		filter.HasCredentials = &no
	}

	rows, total, errList := h.svc.List(filter)
	if errList != nil {
		respondCatalogError(c, errList)
		return
	}

	engagements := h.engagementsFor(c, rows)
	out := make([]gin.H, 0, len(rows))
	for i := range rows {
		out = append(out, serializeConnection(&rows[i], engagements))
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": out,
		"total":       total,
		"page":        q.Page,
		"per_page":    q.PerPage,
	})
}

// Get returns a single connection with sensitive fields omitted.
func (h *ConnectionHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	row, errGet := h.svc.Get(id)
	if errGet != nil {
		respondCatalogError(c, errGet)
		return
	}
	engagements := h.engagementsFor(c, []models.Connection{*row})
	c.JSON(http.StatusOK, serializeConnection(row, engagements))
}

// Decrypt returns a single connection with sensitive fields decrypted.
func (h *ConnectionHandler) Decrypt(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	decrypted, errGet := h.svc.GetDecrypted(id)
	if errGet != nil {
		respondCatalogError(c, errGet)
		return
	}
	engagements := h.engagementsForIDs(c, []uint64{decrypted.ID})
	c.JSON(http.StatusOK, serializeDecrypted(decrypted, engagements))
}

// searchConnectionsQuery defines query parameters for the decrypted search.
type searchConnectionsQuery struct {
	SearchIP       string `form:"search_ip"`
	SearchURL      string `form:"search_url"`
	SearchUser     string `form:"search_user"`
	SearchComments string `form:"search_comments"`
	Company        string `form:"company"`
	Site           string `form:"site"`
	Application    string `form:"application"`
	Service        string `form:"service"`
	Page           int    `form:"page,default=1"`
	PerPage        int    `form:"per_page,default=20"`
}

// Search filters the decrypted connection set, including encrypted content.
func (h *ConnectionHandler) Search(c *gin.Context) {
	var q searchConnectionsQuery
	if errBind := c.ShouldBindQuery(&q); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query"})
		return
	}

	matches, total, errSearch := h.svc.Search(connections.SearchFilter{
		IP:          q.SearchIP,
		URL:         q.SearchURL,
		User:        q.SearchUser,
		Comments:    q.SearchComments,
		Company:     q.Company,
		Site:        q.Site,
		Application: q.Application,
		Service:     q.Service,
		Page:        q.Page,
		PerPage:     q.PerPage,
	})
	if errSearch != nil {
		respondCatalogError(c, errSearch)
		return
	}

	ids := make([]uint64, 0, len(matches))
	for i := range matches {
		ids = append(ids, matches[i].ID)
	}
	engagements := h.engagementsForIDs(c, ids)

	out := make([]gin.H, 0, len(matches))
	for i := range matches {
		out = append(out, serializeDecrypted(&matches[i], engagements))
	}
	c.JSON(http.StatusOK, gin.H{
		"connections": out,
		"total":       total,
		"page":        q.Page,
		"per_page":    q.PerPage,
	})
}

// Stats returns catalog-level counts.
func (h *ConnectionHandler) Stats(c *gin.Context) {
	stats, errStats := h.svc.Stats()
	if errStats != nil {
		respondCatalogError(c, errStats)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Import ingests a connections bundle. The archive comes from the uploaded
// "archive" form file when present, otherwise from the configured drop path.
// Superuser only; enforced by route middleware.
func (h *ConnectionHandler) Import(c *gin.Context) {
	var report *connections.ImportReport
	var errImport error

	if file, errFile := c.FormFile("archive"); errFile == nil {
		opened, errOpen := file.Open()
		if errOpen != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded archive"})
			return
		}
		data, errRead := io.ReadAll(opened)
		_ = opened.Close()
		if errRead != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read uploaded archive"})
			return
		}
		report, errImport = h.svc.ImportUpload(bytes.NewReader(data), int64(len(data)))
	} else {
		report, errImport = h.svc.ImportArchive(h.dropPath)
	}

	if errImport != nil {
		log.Errorf("connections import failed: %v", errImport)
		respondCatalogError(c, errImport)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Import completed successfully",
		"imported": report.Imported,
		"updated":  report.Updated,
		"skipped":  report.Skipped,
		"total":    report.Total,
	})
}

// rateRequest is the body of the rate endpoint.
type rateRequest struct {
	Rating string `json:"rating" binding:"required"`
}

// Rate records the caller's up/down rating for a connection.
func (h *ConnectionHandler) Rate(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req rateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "rating is required"})
		return
	}

	conn, errRate := h.svc.Rate(userID, id, req.Rating)
	if errRate != nil {
		respondCatalogError(c, errRate)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":          conn.ID,
		"rating_up":   conn.RatingUp,
		"rating_down": conn.RatingDown,
		"usage_count": conn.UsageCount,
		"user_rating": req.Rating,
	})
}

// TrackUsage counts one use of a connection by the caller.
func (h *ConnectionHandler) TrackUsage(c *gin.Context) {
	userID := getUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}

	row, errTrack := h.svc.TrackUsage(userID, id)
	if errTrack != nil {
		respondCatalogError(c, errTrack)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"connection_id": row.ConnectionID,
		"usage_count":   row.UsageCount,
		"first_used_at": row.FirstUsedAt,
		"last_used_at":  row.LastUsedAt,
	})
}

// engagementsFor loads the caller's engagement rows for the listed
// connections; anonymous callers get none.
func (h *ConnectionHandler) engagementsFor(c *gin.Context, rows []models.Connection) map[uint64]models.ConnectionUserEngagement {
	ids := make([]uint64, 0, len(rows))
	for i := range rows {
		ids = append(ids, rows[i].ID)
	}
	return h.engagementsForIDs(c, ids)
}

// engagementsForIDs loads the caller's engagement rows in one query per
// request; anonymous callers get none.
func (h *ConnectionHandler) engagementsForIDs(c *gin.Context, ids []uint64) map[uint64]models.ConnectionUserEngagement {
	userID := getUserID(c)
	if userID == 0 || len(ids) == 0 {
		return nil
	}
	engagements, errLoad := h.svc.EngagementFor(userID, ids)
	if errLoad != nil {
		log.Warnf("could not load engagements: %v", errLoad)
		return nil
	}
	return engagements
}

// serializeDecrypted renders a decrypted connection plus the caller's
// engagement fields.
func serializeDecrypted(conn *connections.DecryptedConnection, engagements map[uint64]models.ConnectionUserEngagement) gin.H {
	out := gin.H{
		"id":                      conn.ID,
		"company_name":            conn.CompanyName,
		"site_name":               conn.SiteName,
		"application_name":        conn.ApplicationName,
		"application_last_update": conn.ApplicationLastUpdate,
		"connection_last_update":  conn.ConnectionLastUpdate,
		"server_last_update":      conn.ServerLastUpdate,
		"url_id":                  conn.URLID,
		"url_last_update":         conn.URLLastUpdate,
		"url_mode":                conn.URLMode,
		"url_service":             conn.URLService,
		"url_server_type":         conn.URLServerType,
		"comments":                conn.Comments,
		"comment_urls":            conn.CommentURLs,
		"server_ip":               conn.ServerIP,
		"url_type":                conn.URLType,
		"url":                     conn.URL,
		"user":                    conn.User,
		"pwd":                     conn.Pwd,
		"server_comment":          conn.ServerComment,
		"has_credentials":         conn.HasCredentials,
		"has_url":                 conn.HasURL,
		"rating_up":               conn.RatingUp,
		"rating_down":             conn.RatingDown,
		"usage_count":             conn.UsageCount,
		"created_at":              conn.CreatedAt,
		"updated_at":              conn.UpdatedAt,
	}
	attachEngagement(out, conn.ID, engagements)
	return out
}

// serializeConnection renders a connection without its sensitive fields.
func serializeConnection(row *models.Connection, engagements map[uint64]models.ConnectionUserEngagement) gin.H {
	out := gin.H{
		"id":                      row.ID,
		"company_name":            row.CompanyName,
		"site_name":               row.SiteName,
		"application_name":        row.ApplicationName,
		"application_last_update": row.ApplicationLastUpdate,
		"connection_last_update":  row.ConnectionLastUpdate,
		"server_last_update":      row.ServerLastUpdate,
		"url_id":                  row.URLID,
		"url_last_update":         row.URLLastUpdate,
		"url_mode":                row.URLMode,
		"url_service":             row.URLService,
		"url_server_type":         row.URLServerType,
		"has_credentials":         row.HasCredentials(),
		"has_url":                 row.HasURL(),
		"rating_up":               row.RatingUp,
		"rating_down":             row.RatingDown,
		"usage_count":             row.UsageCount,
		"created_at":              row.CreatedAt,
		"updated_at":              row.UpdatedAt,
	}
	attachEngagement(out, row.ID, engagements)
	return out
}

// attachEngagement merges per-caller engagement fields into a payload.
func attachEngagement(out gin.H, connectionID uint64, engagements map[uint64]models.ConnectionUserEngagement) {
	engagement, ok := engagements[connectionID]
	if !ok {
		return
	}
	out["user_rating"] = engagement.Rating
	out["user_usage_count"] = engagement.UsageCount
	out["first_used_at"] = engagement.FirstUsedAt
	out["last_used_at"] = engagement.LastUsedAt
}

// parseID reads the numeric id path parameter.
func parseID(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(c.Param("id"), 10, 64)
	if errParse != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid connection id"})
		return 0, false
	}
	return id, true
}
