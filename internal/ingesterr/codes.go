package ingesterr

// Local error numbers. The values are stable so logs and callers that
// persisted them keep their meaning.
const (
	CodeInvalidAccountData     = 1
	CodeAccountIDMissing       = 2
	CodeVideoDataAndVideoID    = 3
	CodeNoVideoID              = 4
	CodeInvalidFileType        = 5
	CodeInvalidUploadOption    = 7
	CodeCMSRequestFailed       = 8
	CodeIngestRequestFailed    = 9
	CodeUploadURLRequestFailed = 10
	CodeClientIDMissing        = 12
	CodeClientSecretMissing    = 14
	CodeNoSrcLangForTextTrack  = 15
	CodeInvalidVideoData       = 17
	CodeInvalidIngestData      = 18
	CodeInvalidFilesData       = 19
	CodeInvalidTextTracksData  = 20
	CodeInvalidFilePath        = 21
	CodeInvalidTextTrackPath   = 22
	CodeAPIError               = 23
	CodeAuthenticationFailed   = 25
	CodeTransportFailed        = 26
	CodeUploadFailed           = 27
)

var descriptions = map[int]string{
	CodeInvalidAccountData:     "No valid JSON for account data was found",
	CodeAccountIDMissing:       "Account data did not include an account_id",
	CodeVideoDataAndVideoID:    "Provide video data for new videos or video_id for replace and retranscode requests, not both",
	CodeNoVideoID:              "If you are not ingesting a new video, a video id is required",
	CodeInvalidFileType:        "The file type is not supported",
	CodeInvalidUploadOption:    "An invalid media upload parameter has been set",
	CodeCMSRequestFailed:       "CMS API request failed",
	CodeIngestRequestFailed:    "Dynamic Ingest API request failed",
	CodeUploadURLRequestFailed: "Upload URL request failed",
	CodeClientIDMissing:        "Client id not provided",
	CodeClientSecretMissing:    "Client secret not provided",
	CodeNoSrcLangForTextTrack:  "Text tracks require a srclang",
	CodeInvalidVideoData:       "Video metadata is not valid",
	CodeInvalidIngestData:      "Ingest options are not valid",
	CodeInvalidFilesData:       "File mapping is not valid",
	CodeInvalidTextTracksData:  "Text track data is not valid",
	CodeInvalidFilePath:        "A file path could not be read",
	CodeInvalidTextTrackPath:   "A text track path could not be read",
	CodeAPIError:               "API error",
	CodeAuthenticationFailed:   "Access token request failed",
	CodeTransportFailed:        "Transport error",
	CodeUploadFailed:           "Upload to object storage failed",
}

// Describe returns the text for a local error number, or "" if unknown.
func Describe(code int) string {
	return descriptions[code]
}
