package coreapi

type StartEnrollmentRequest struct {
	SendEnrollmentNotification bool `json:"send_enrollment_notification"`
}

type StartEnrollmentResponse struct {
	EnrollmentToken string `json:"enrollment_token"`
	EnrollmentURL   string `json:"enrollment_url"`
}

// IPRecommendation is one suggested address in a location. The full address
// is NetworkPart followed by ModifiablePart.
type IPRecommendation struct {
	NetworkPart    string `json:"network_part"`
	NetworkPrefix  int    `json:"network_prefix"`
	ModifiablePart string `json:"modifiable_part"`
}

func (r IPRecommendation) Address() string {
	return r.NetworkPart + r.ModifiablePart
}

type ValidateIPsRequest struct {
	IPs []string `json:"ips"`
}

type IPValidation struct {
	Available bool `json:"available"`
	Valid     bool `json:"valid"`
}

type AddDeviceRequest struct {
	Name            string   `json:"name"`
	WireguardPubkey string   `json:"wireguard_pubkey"`
	LocationID      int64    `json:"location_id"`
	AssignedIPs     []string `json:"assigned_ips,omitempty"`
	Description     string   `json:"description,omitempty"`
}

type Device struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	WireguardPubkey string `json:"wireguard_pubkey"`
	Description     string `json:"description,omitempty"`
}

// DeviceConfig is a downloadable WireGuard configuration for one location.
type DeviceConfig struct {
	NetworkID         int64    `json:"network_id"`
	NetworkName       string   `json:"network_name"`
	Config            string   `json:"config"`
	Address           []string `json:"address"`
	Endpoint          string   `json:"endpoint"`
	AllowedIPs        []string `json:"allowed_ips"`
	PubKey            string   `json:"pubkey"`
	DNS               string   `json:"dns,omitempty"`
	KeepaliveInterval int      `json:"keepalive_interval"`
}

type AddDeviceResponse struct {
	Device  Device         `json:"device"`
	Configs []DeviceConfig `json:"configs"`
}

type errorResponse struct {
	Msg   string `json:"msg"`
	Error string `json:"error"`
}
