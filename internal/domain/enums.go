package domain

// NameType classifies a name (a customer, supplier, patient...).
type NameType string

const (
	NameFacility NameType = "facility"
	NamePatient  NameType = "patient"
	NameBuild    NameType = "build"
	NameInvad    NameType = "invad"
	NameRepack   NameType = "repack"
	NameStore    NameType = "store"
	NameOthers   NameType = "others"
)

// Gender of a patient name.
type Gender string

const (
	GenderFemale Gender = "female"
	GenderMale   Gender = "male"
)

// ItemType classifies an item.
type ItemType string

const (
	ItemStock    ItemType = "stock"
	ItemService  ItemType = "service"
	ItemNonStock ItemType = "non_stock"
)

// InvoiceType is the normalized transaction kind.
type InvoiceType string

const (
	InvoiceOutboundShipment InvoiceType = "outbound_shipment"
	InvoiceInboundShipment  InvoiceType = "inbound_shipment"
	InvoicePrescription     InvoiceType = "prescription"
	InvoiceInventoryAdjust  InvoiceType = "inventory_adjustment"
	InvoiceRepack           InvoiceType = "repack"
)

// InvoiceStatus is the normalized transaction lifecycle state.
type InvoiceStatus string

const (
	StatusNew       InvoiceStatus = "new"
	StatusAllocated InvoiceStatus = "allocated"
	StatusPicked    InvoiceStatus = "picked"
	StatusShipped   InvoiceStatus = "shipped"
	StatusDelivered InvoiceStatus = "delivered"
	StatusVerified  InvoiceStatus = "verified"
)

// InvoiceLineType classifies a transaction line.
type InvoiceLineType string

const (
	LineStockIn  InvoiceLineType = "stock_in"
	LineStockOut InvoiceLineType = "stock_out"
	LineService  InvoiceLineType = "service"
)
