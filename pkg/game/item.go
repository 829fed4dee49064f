package game

import "fmt"

// Well-known item ids
const (
	ItemCoins         = 995
	ItemPlatinumToken = 13204
	ItemBankFiller    = 20594
)

const (
	// HighAlchemyNumerator / HighAlchemyDenominator is the 0.6 store price ratio
	HighAlchemyNumerator   = 3
	HighAlchemyDenominator = 5
	// PlatinumTokenValue is the coin value of one platinum token
	PlatinumTokenValue = 1000
)

// Item is one slot of a container
type Item struct {
	ID       int `json:"id"`
	Quantity int `json:"quantity"`
}

// ItemComposition is the static definition of an item
type ItemComposition struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	// Price is the general store price
	Price int `json:"price"`
}

// HighAlchemyPrice floors the store price times the high alchemy multiplier
func HighAlchemyPrice(storePrice int) int64 {
	return int64(storePrice) * HighAlchemyNumerator / HighAlchemyDenominator
}

// InventoryID identifies an item container
type InventoryID int

const (
	InventoryMain      InventoryID = 93
	InventoryEquipment InventoryID = 94
	InventoryBank      InventoryID = 95
	InventorySeedVault InventoryID = 626
)

var inventoryNames = map[InventoryID]string{
	InventoryMain:      "INVENTORY",
	InventoryEquipment: "EQUIPMENT",
	InventoryBank:      "BANK",
	InventorySeedVault: "SEED_VAULT",
}

func (id InventoryID) String() string {
	if name, ok := inventoryNames[id]; ok {
		return name
	}
	return fmt.Sprintf("CONTAINER_%d", int(id))
}

// ParseInventory resolves a container by name
func ParseInventory(name string) (InventoryID, bool) {
	for id, n := range inventoryNames {
		if n == name {
			return id, true
		}
	}
	return 0, false
}

// ItemContainer is a snapshot of a container's slots.
// A nil Items slice means the host had no item array.
type ItemContainer struct {
	ID    int    `json:"id"`
	Items []Item `json:"items"`
}
