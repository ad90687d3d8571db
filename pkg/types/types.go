package types

import (
	"strings"

	"github.com/google/uuid"
)

// Identifiers used across the inventory surface
type (
	UserID   = uuid.UUID
	FolderID = uuid.UUID
	ItemID   = uuid.UUID
	AssetID  = uuid.UUID
)

// InventoryServiceKey is the service URL key carrying a user's home inventory
// endpoint
const InventoryServiceKey = "InventoryServerURI"

// Endpoint is a canonical remote inventory service address
type Endpoint string

// CanonicalEndpoint trims surrounding whitespace and leading/trailing slashes
func CanonicalEndpoint(raw string) Endpoint {
	return Endpoint(strings.Trim(strings.TrimSpace(raw), "/"))
}

// IsZero reports whether the endpoint is absent
func (e Endpoint) IsZero() bool {
	return e == ""
}

// String returns the endpoint URL
func (e Endpoint) String() string {
	return string(e)
}

// FolderType identifies system folders
type FolderType int

const (
	FolderTypeNone          FolderType = -1
	FolderTypeTexture       FolderType = 0
	FolderTypeSound         FolderType = 1
	FolderTypeCallingCard   FolderType = 2
	FolderTypeLandmark      FolderType = 3
	FolderTypeClothing      FolderType = 5
	FolderTypeObject        FolderType = 6
	FolderTypeNotecard      FolderType = 7
	FolderTypeRoot          FolderType = 8
	FolderTypeLSLText       FolderType = 10
	FolderTypeBodyPart      FolderType = 13
	FolderTypeTrash         FolderType = 14
	FolderTypeSnapshot      FolderType = 15
	FolderTypeLostAndFound  FolderType = 16
	FolderTypeAnimation     FolderType = 20
	FolderTypeGesture       FolderType = 21
	FolderTypeFavorites     FolderType = 23
	FolderTypeCurrentOutfit FolderType = 46
	FolderTypeOutfit        FolderType = 47
	FolderTypeMyOutfits     FolderType = 48
)

// StandardFolderTypes lists the system folders created under a new root
var StandardFolderTypes = []FolderType{
	FolderTypeTexture,
	FolderTypeSound,
	FolderTypeCallingCard,
	FolderTypeLandmark,
	FolderTypeClothing,
	FolderTypeObject,
	FolderTypeNotecard,
	FolderTypeLSLText,
	FolderTypeBodyPart,
	FolderTypeTrash,
	FolderTypeSnapshot,
	FolderTypeLostAndFound,
	FolderTypeAnimation,
	FolderTypeGesture,
	FolderTypeFavorites,
	FolderTypeCurrentOutfit,
	FolderTypeMyOutfits,
}

var folderTypeNames = map[FolderType]string{
	FolderTypeNone:          "None",
	FolderTypeTexture:       "Textures",
	FolderTypeSound:         "Sounds",
	FolderTypeCallingCard:   "Calling Cards",
	FolderTypeLandmark:      "Landmarks",
	FolderTypeClothing:      "Clothing",
	FolderTypeObject:        "Objects",
	FolderTypeNotecard:      "Notecards",
	FolderTypeRoot:          "My Inventory",
	FolderTypeLSLText:       "Scripts",
	FolderTypeBodyPart:      "Body Parts",
	FolderTypeTrash:         "Trash",
	FolderTypeSnapshot:      "Photo Album",
	FolderTypeLostAndFound:  "Lost And Found",
	FolderTypeAnimation:     "Animations",
	FolderTypeGesture:       "Gestures",
	FolderTypeFavorites:     "Favorites",
	FolderTypeCurrentOutfit: "Current Outfit",
	FolderTypeOutfit:        "Outfit",
	FolderTypeMyOutfits:     "My Outfits",
}

// String returns the default folder name for the type
func (t FolderType) String() string {
	if name, ok := folderTypeNames[t]; ok {
		return name
	}
	return "Unknown"
}

// Folder represents an inventory folder
type Folder struct {
	ID       FolderID   `json:"id"`
	Owner    UserID     `json:"owner"`
	Type     FolderType `json:"type"`
	ParentID FolderID   `json:"parent_id"`
	Name     string     `json:"name"`
	Version  int        `json:"version"`
}

// Item represents an inventory item
type Item struct {
	ID          ItemID   `json:"id"`
	Owner       UserID   `json:"owner"`
	FolderID    FolderID `json:"folder_id"`
	AssetID     AssetID  `json:"asset_id"`
	Name        string   `json:"name"`
	Permissions int      `json:"permissions"`
}

// Collection is an immutable snapshot of a folder and its direct contents
type Collection struct {
	Folder  *Folder   `json:"folder"`
	Folders []*Folder `json:"folders"`
	Items   []*Item   `json:"items"`
}

// Presence describes a user inside one hosted session
type Presence struct {
	UserID      UserID            `json:"user_id"`
	ChildAgent  bool              `json:"child_agent"`
	Active      bool              `json:"active"`
	ServiceURLs map[string]string `json:"service_urls,omitempty"`
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	Hits          uint64  `json:"hits"`
	Misses        uint64  `json:"misses"`
	Evictions     uint64  `json:"evictions"`
	Constructions uint64  `json:"constructions,omitempty"`
	Entries       int     `json:"entries"`
	HitRate       float64 `json:"hit_rate"`
}
