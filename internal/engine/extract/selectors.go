package extract

// Field names a piece of the listing details panel by its role.
type Field int

const (
	FieldName Field = iota
	FieldAddress
	FieldWebsite
	FieldPhone
	FieldReviews
)

func (f Field) String() string {
	switch f {
	case FieldName:
		return "name"
	case FieldAddress:
		return "address"
	case FieldWebsite:
		return "website"
	case FieldPhone:
		return "phone"
	case FieldReviews:
		return "reviews"
	}
	return "unknown"
}

// Selectors maps each field to a CSS selector on the details panel. These
// break whenever Maps ships a UI change; patch them here.
type Selectors map[Field]string

func DefaultSelectors() Selectors {
	return Selectors{
		FieldName:    `h1.DUwDvf.lfPIob`,
		FieldAddress: `button[data-item-id="address"] div.fontBodyMedium`,
		FieldWebsite: `a[data-item-id="authority"] div.fontBodyMedium`,
		FieldPhone:   `button[data-item-id^="phone:tel:"] div.fontBodyMedium`,
		FieldReviews: `span[role="img"].F7nice, div.F7nice span[role="img"][aria-label]`,
	}
}
