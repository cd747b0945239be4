package dto

import "time"

type OpenSessionRequest struct {
	Username string `json:"username" binding:"required"`
}

type SelectLocationRequest struct {
	LocationID int64 `json:"location_id"`
}

type ManualDeviceRequest struct {
	Name        string   `json:"name"`
	LocationID  int64    `json:"location_id"`
	KeyMode     string   `json:"key_mode"`
	PublicKey   string   `json:"public_key"`
	Addresses   []string `json:"addresses"`
	Description string   `json:"description"`
}

type EnrollmentInfo struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type RecommendationInfo struct {
	NetworkPart    string `json:"network_part"`
	NetworkPrefix  int    `json:"network_prefix"`
	ModifiablePart string `json:"modifiable_part"`
	Address        string `json:"address"`
}

type ManualFormInfo struct {
	LocationID      int64                `json:"location_id,omitempty"`
	Recommendations []RecommendationInfo `json:"recommendations"`
}

type DeviceInfo struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	PublicKey   string `json:"public_key"`
	Description string `json:"description,omitempty"`
}

type ConfigInfo struct {
	NetworkID   int64    `json:"network_id"`
	NetworkName string   `json:"network_name"`
	Address     []string `json:"address"`
	Endpoint    string   `json:"endpoint"`
	AllowedIPs  []string `json:"allowed_ips"`
	DNS         string   `json:"dns,omitempty"`
}

type SessionResponse struct {
	SessionID  string          `json:"session_id"`
	Username   string          `json:"username"`
	Step       string          `json:"step"`
	Pending    bool            `json:"pending"`
	Devices    []string        `json:"devices"`
	Enrollment *EnrollmentInfo `json:"enrollment,omitempty"`
	Form       *ManualFormInfo `json:"form,omitempty"`
	Device     *DeviceInfo     `json:"device,omitempty"`
	Configs    []ConfigInfo    `json:"configs,omitempty"`
	PublicKey  string          `json:"public_key,omitempty"`
	KeysLocal  bool            `json:"keys_local,omitempty"`
}

type RecommendationsResponse struct {
	LocationID      int64                `json:"location_id"`
	Recommendations []RecommendationInfo `json:"recommendations"`
}

type ManualDeviceResponse struct {
	Closed    bool         `json:"closed"`
	Device    DeviceInfo   `json:"device"`
	Configs   []ConfigInfo `json:"configs"`
	KeysLocal bool         `json:"keys_local"`
}

type DeliveryResponse struct {
	Token     string `json:"token"`
	URL       string `json:"url"`
	DeepLink  string `json:"deep_link"`
	QRPayload string `json:"qr_payload"`
	Text      string `json:"text"`
}

type JournalEntry struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Username   string    `json:"username"`
	Kind       string    `json:"kind"`
	DeviceName string    `json:"device_name,omitempty"`
	DeviceID   int64     `json:"device_id,omitempty"`
	LocationID int64     `json:"location_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type HistoryResponse struct {
	Entries []JournalEntry `json:"entries"`
	Count   int            `json:"count"`
}

type ErrorResponse struct {
	Error     string            `json:"error"`
	Retryable bool              `json:"retryable,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}
