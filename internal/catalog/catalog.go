// Package catalog lists the tech tools and communication methods a card can
// carry, with the tool URL templates.
package catalog

import "strings"

// Tech tool keys in their canonical display order.
const (
	ToolMarketDatabase  = "mdb"
	ToolRentalLP        = "rlp"
	ToolLandLP          = "llp"
	ToolAIValuation     = "ai"
	ToolSellerLP        = "slp"
	ToolOwnerLP         = "olp"
	ToolApartmentLP     = "alp"
	MinActiveTechTools  = 2
	techToolSlugPattern = "{slug}"
)

// TechToolOrder lists every supported tool key.
var TechToolOrder = []string{
	ToolMarketDatabase,
	ToolRentalLP,
	ToolLandLP,
	ToolAIValuation,
	ToolSellerLP,
	ToolOwnerLP,
	ToolApartmentLP,
}

var techToolURLTemplates = map[string]string{
	ToolMarketDatabase: "https://self-in.com/{slug}/mdb/",
	ToolRentalLP:       "https://self-in.com/{slug}/rlp/",
	ToolLandLP:         "https://self-in.com/{slug}/llp/",
	ToolAIValuation:    "https://self-in.com/{slug}/ai/index.php",
	ToolSellerLP:       "https://self-in.com/{slug}/slp/",
	ToolOwnerLP:        "https://self-in.com/{slug}/olp/",
	ToolApartmentLP:    "https://self-in.com/{slug}/alp/",
}

// IsTechTool reports whether toolType is a known tool key.
func IsTechTool(toolType string) bool {
	_, ok := techToolURLTemplates[toolType]
	return ok
}

// TechToolURL renders the tool URL for a card slug. Unknown tools yield "".
func TechToolURL(toolType, slug string) string {
	tmpl, ok := techToolURLTemplates[toolType]
	if !ok {
		return ""
	}
	return strings.ReplaceAll(tmpl, techToolSlugPattern, slug)
}

// GeneratedToolURL pairs a tool with its rendered URL.
type GeneratedToolURL struct {
	ToolType string `json:"tool_type"`
	ToolURL  string `json:"tool_url"`
}

// GenerateToolURLs renders URLs for the selected tools in request order,
// dropping unknown keys and duplicates.
func GenerateToolURLs(selected []string, slug string) []GeneratedToolURL {
	seen := make(map[string]bool, len(selected))
	result := make([]GeneratedToolURL, 0, len(selected))
	for _, toolType := range selected {
		toolType = strings.TrimSpace(toolType)
		if !IsTechTool(toolType) || seen[toolType] {
			continue
		}
		seen[toolType] = true
		result = append(result, GeneratedToolURL{ToolType: toolType, ToolURL: TechToolURL(toolType, slug)})
	}
	return result
}

// Communication method types.
const (
	MethodLine      = "line"
	MethodMessenger = "messenger"
	MethodChatwork  = "chatwork"
	MethodInstagram = "instagram"
	MethodFacebook  = "facebook"
	MethodTwitter   = "twitter"
	MethodYouTube   = "youtube"
	MethodTikTok    = "tiktok"
	MethodNote      = "note"
	MethodPinterest = "pinterest"
	MethodThreads   = "threads"
)

// MessageAppMethods and SNSMethods are the two groups in display order.
var (
	MessageAppMethods = []string{MethodLine, MethodMessenger, MethodChatwork}
	SNSMethods        = []string{MethodInstagram, MethodFacebook, MethodTwitter, MethodYouTube, MethodTikTok, MethodNote, MethodPinterest, MethodThreads}
)

// IsCommunicationMethod reports whether methodType is supported.
func IsCommunicationMethod(methodType string) bool {
	for _, m := range MessageAppMethods {
		if m == methodType {
			return true
		}
	}
	for _, m := range SNSMethods {
		if m == methodType {
			return true
		}
	}
	return false
}

// IsIDBasedMethod reports whether the method stores an account id instead of a URL.
func IsIDBasedMethod(methodType string) bool {
	return methodType == MethodChatwork
}
