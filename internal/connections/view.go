package connections

import (
	"encoding/json"
	"time"

	"github.com/connvault/connvault/internal/models"
	"github.com/connvault/connvault/internal/security"
	"gorm.io/datatypes"
)

// DecryptedConnection is the plaintext view of one connection. Fields that
// fail tag verification degrade to nil individually instead of aborting the
// record. Per-user engagement is joined in afterward by the caller; the
// cached view itself is shared across users.
type DecryptedConnection struct {
	ID              uint64 `json:"id"`
	CompanyName     string `json:"company_name"`
	SiteName        string `json:"site_name"`
	ApplicationName string `json:"application_name"`

	ApplicationLastUpdate *time.Time `json:"application_last_update"`
	ConnectionLastUpdate  *time.Time `json:"connection_last_update"`
	ServerLastUpdate      *time.Time `json:"server_last_update"`

	URLID         string     `json:"url_id"`
	URLLastUpdate *time.Time `json:"url_last_update"`
	URLMode       string     `json:"url_mode"`
	URLService    string     `json:"url_service"`
	URLServerType string     `json:"url_server_type"`

	Comments      *string   `json:"comments"`
	CommentURLs   []*string `json:"comment_urls"`
	ServerIP      *string   `json:"server_ip"`
	URLType       *string   `json:"url_type"`
	URL           *string   `json:"url"`
	User          *string   `json:"user"`
	Pwd           *string   `json:"pwd"`
	ServerComment *string   `json:"server_comment"`

	HasCredentials bool `json:"has_credentials"`
	HasURL         bool `json:"has_url"`

	RatingUp   int64 `json:"rating_up"`
	RatingDown int64 `json:"rating_down"`
	UsageCount int64 `json:"usage_count"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Decrypt produces the plaintext view of one connection record, decrypting
// each sensitive field independently under its own context label.
func (s *Service) Decrypt(conn *models.Connection) DecryptedConnection {
	out := DecryptedConnection{
		ID:                    conn.ID,
		CompanyName:           conn.CompanyName,
		SiteName:              conn.SiteName,
		ApplicationName:       conn.ApplicationName,
		ApplicationLastUpdate: conn.ApplicationLastUpdate,
		ConnectionLastUpdate:  conn.ConnectionLastUpdate,
		ServerLastUpdate:      conn.ServerLastUpdate,
		URLID:                 conn.URLID,
		URLLastUpdate:         conn.URLLastUpdate,
		URLMode:               conn.URLMode,
		URLService:            conn.URLService,
		URLServerType:         conn.URLServerType,
		HasCredentials:        conn.HasCredentials(),
		HasURL:                conn.HasURL(),
		RatingUp:              conn.RatingUp,
		RatingDown:            conn.RatingDown,
		UsageCount:            conn.UsageCount,
		CreatedAt:             conn.CreatedAt,
		UpdatedAt:             conn.UpdatedAt,
	}

	out.Comments = s.cipher.DecryptPtr(conn.Comments, security.ContextComments)
	out.ServerIP = s.cipher.DecryptPtr(conn.ServerIP, security.ContextIP)
	out.URLType = s.cipher.DecryptPtr(conn.URLType, security.ContextURLType)
	out.URL = s.cipher.DecryptPtr(conn.URL, security.ContextURL)
	out.User = s.cipher.DecryptPtr(conn.User, security.ContextUser)
	out.Pwd = s.cipher.DecryptPtr(conn.Pwd, security.ContextPwd)
	out.ServerComment = s.cipher.DecryptPtr(conn.URLServerComment, security.ContextServerComment)
	out.CommentURLs = s.decryptCommentURLs(conn.CommentURLs)

	return out
}

// decryptCommentURLs decrypts the JSON array of ciphertext strings
// element-wise; elements that fail verification degrade to nil.
func (s *Service) decryptCommentURLs(raw datatypes.JSON) []*string {
	if len(raw) == 0 {
		return nil
	}
	var encrypted []string
	if errUnmarshal := json.Unmarshal(raw, &encrypted); errUnmarshal != nil {
		return nil
	}
	out := make([]*string, 0, len(encrypted))
	for _, item := range encrypted {
		out = append(out, s.cipher.Decrypt(item, security.ContextCommentURLs))
	}
	return out
}

// DecryptedAll returns the full decrypted connection set, serving the shared
// view cache and repopulating it on miss. Concurrent misses may each decrypt
// the full set; the last writer wins.
func (s *Service) DecryptedAll() ([]DecryptedConnection, error) {
	if cached, ok := s.view.Get(); ok {
		return cached, nil
	}

	rows, err := s.all()
	if err != nil {
		return nil, err
	}
	decrypted := make([]DecryptedConnection, 0, len(rows))
	for i := range rows {
		decrypted = append(decrypted, s.Decrypt(&rows[i]))
	}
	s.view.Set(decrypted)
	return decrypted, nil
}

// GetDecrypted decrypts a single connection. A warm view cache is consulted
// first; a miss decrypts just the one record without forcing a full warm-up.
func (s *Service) GetDecrypted(id uint64) (*DecryptedConnection, error) {
	if cached, ok := s.view.Get(); ok {
		for i := range cached {
			if cached[i].ID == id {
				return &cached[i], nil
			}
		}
		return nil, ErrNotFound
	}

	conn, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	decrypted := s.Decrypt(conn)
	return &decrypted, nil
}
