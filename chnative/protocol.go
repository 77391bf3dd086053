package chnative

// Client packet tags, sent from client to server.
const (
	packetClientHello               = 0
	packetClientQuery               = 1
	packetClientData                = 2
	packetClientCancel              = 3
	packetClientPing                = 4
	packetClientTablesStatusRequest = 5
)

// Server packet tags, sent from server to client.
const (
	packetServerHello               = 0
	packetServerData                = 1
	packetServerException           = 2
	packetServerProgress            = 3
	packetServerPong                = 4
	packetServerEndOfStream         = 5
	packetServerProfileInfo         = 6
	packetServerTotals              = 7
	packetServerExtremes            = 8
	packetServerTablesStatusResponse = 9
	packetServerLog                 = 10
	packetServerTableColumns        = 11
	packetServerPartUUIDs           = 12
	packetServerReadTaskRequest     = 13
	packetServerProfileEvents       = 14
)

// Query stages, sent in the ClientQuery packet.
const (
	queryStageComplete = 2
)

// Compression negotiation flags carried in the ClientQuery packet.
const (
	compressionDisabled = 0
	compressionEnabled  = 1
)

// clientRevision is the protocol revision this implementation advertises
// during the handshake; it gates which optional fields this client reads
// and writes. Pinned to the highest tested revision.
const clientRevision = 54479

// minServerRevision is the lowest server revision this client will
// negotiate down to.
const minServerRevision = 54429

// Revision thresholds gating individual protocol features.
const (
	revisionWithClientInfo        = 54441
	revisionWithSettingsAsStrings = 54448
	revisionWithTimezone          = 54449
	revisionWithVersionPatch      = 54451
	revisionWithQuotaKey          = 54453
	revisionWithDateTime64        = 54458
	revisionWithParameters        = 54466
	revisionWithProfileEvents     = 54479
)

// featureGate reports whether the named optional protocol feature is
// available at the given negotiated revision: each optional field gets one
// named gate here rather than scattered inline revision comparisons.
func featureGate(name string, revision uint64) bool {
	switch name {
	case "client_info":
		return revision >= revisionWithClientInfo
	case "settings_as_strings":
		return revision >= revisionWithSettingsAsStrings
	case "timezone":
		return revision >= revisionWithTimezone
	case "version_patch":
		return revision >= revisionWithVersionPatch
	case "quota_key":
		return revision >= revisionWithQuotaKey
	case "datetime64":
		return revision >= revisionWithDateTime64
	case "parameters":
		return revision >= revisionWithParameters
	case "profile_events":
		return revision >= revisionWithProfileEvents
	default:
		return false
	}
}
