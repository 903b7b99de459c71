package backup

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/models"
)

const PayloadVersion = "1"

// Snapshot is the backup file. Payload keeps the exact signed bytes.
type Snapshot struct {
	Signature string          `json:"signature"`
	Payload   json.RawMessage `json:"payload"`
}

type Payload struct {
	Version    string    `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	Data       Data      `json:"data"`
}

// Data holds the exported rows keyed by table name.
type Data struct {
	StoreSettings []models.StoreSetting `json:"store_settings"`
	Categories    []models.Category     `json:"categories"`
	Clients       []models.Client       `json:"clients"`
	Items         []models.Item         `json:"items"`
	Documents     []models.Document     `json:"documents"`
	DocumentItems []models.DocumentItem `json:"document_items"`
}

func sign(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks the signature against the raw payload bytes.
func Verify(snap *Snapshot, secret string) error {
	if snap == nil || len(snap.Payload) == 0 {
		return apperr.ErrInvalidSignature
	}
	got, err := hex.DecodeString(snap.Signature)
	if err != nil {
		return apperr.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(snap.Payload)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return apperr.ErrInvalidSignature
	}
	return nil
}
