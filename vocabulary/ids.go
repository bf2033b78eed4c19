package vocabulary

// System attribute ids.
const (
	// Name holds a TEXT value used as the entity's display name
	Name = "LuBWqZAu6pz54eiJS5mLv8"
	// Description holds a TEXT value
	Description = "LA1DqP5v6QAdsgLPXGF3YA"
	// Types links an entity to a type, either as an ENTITY triple or as a
	// relation whose typeOf is Types
	Types = "Jfmby78N4BCseZinBmdVov"
	// Attributes links a type entity to the attributes its instances carry
	Attributes = "01412f83-8189-4ab1-8365-65c7fd358cc1"
	// ValueType links an attribute to the value type it expects
	ValueType = "WQfdWjboZWFuTseDhG5Cw1"
	// RelationValueType narrows the target type of a relation attribute
	RelationValueType = "cfa6a2f5-151f-43bf-a684-f7f0228f63ff"
	// Cover and Avatar hold image references
	Cover  = "34f53507-2e6b-42c5-a844-43981a77cfa2"
	Avatar = "235ba0e8-dc7e-4bdd-a1e1-6d0d4497f133"
)

// System type ids.
const (
	SchemaType    = "VdTsW1mGiy1XSooJaBBLc4"
	AttributeType = "GscJ2GELQjmLoaVrYyR3xm"
	RelationType  = "c167ef23-fb2a-4044-9ed9-45123e54c2ef"
	ImageType     = "ba4e4146-0010-499d-a0a3-caaa7f579d0e"
)

// Value type entity ids an attribute's ValueType may point to.
const (
	TextValue     = "LckSTmjBrYAJaFcDs89am5"
	NumberValue   = "LBdMpTNyycNffsF51t2eSp"
	CheckboxValue = "G9NpD4c7GB7nH5YU9Tesgf"
	TimeValue     = "3mswMrL91GuYTfBq29EuNE"
	URLValue      = "5xroh3gbWYbWY4oR3nFXzy"
	RelationValue = "AKDxovGvZaPSWnmKnSoZJY"
	ImageValue    = "X8KB1uF84RYppghBSVvhqr"
)
