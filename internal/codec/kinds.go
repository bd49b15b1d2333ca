package codec

import "strings"

// Tipos de mensaje tal como los etiqueta el feed.
const (
	MsgPositionReport               = "PositionReport"
	MsgStandardClassBPositionReport = "StandardClassBPositionReport"
	MsgExtendedClassBPositionReport = "ExtendedClassBPositionReport"
	MsgShipStaticData               = "ShipStaticData"
	MsgStaticDataReport             = "StaticDataReport"
)

// SubscribedKinds es el filtro de tipos enviado en el handshake de suscripción.
var SubscribedKinds = []string{
	MsgPositionReport,
	MsgStandardClassBPositionReport,
	MsgExtendedClassBPositionReport,
	MsgShipStaticData,
	MsgStaticDataReport,
}

var kindByTag = map[string]Kind{
	strings.ToLower(MsgPositionReport):               KindPosition,
	strings.ToLower(MsgStandardClassBPositionReport): KindPosition,
	strings.ToLower(MsgExtendedClassBPositionReport): KindPosition,
	strings.ToLower(MsgShipStaticData):               KindStatic,
	strings.ToLower(MsgStaticDataReport):             KindStatic,
}

func kindOf(tag string) Kind {
	return kindByTag[strings.ToLower(strings.TrimSpace(tag))]
}
