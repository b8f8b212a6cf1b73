// SPDX-License-Identifier: GPL-3.0-only

// Package mccs provides the MCCS VCP feature table and the capability string
// parser used to build per-display feature databases.
package mccs

import "strings"

// FeatureCode is a VCP feature code as defined by the Monitor Control Command Set.
type FeatureCode uint8

// Well-known feature codes.
const (
	Luminance          FeatureCode = 0x10
	Contrast           FeatureCode = 0x12
	InputSource        FeatureCode = 0x60
	AudioSpeakerVolume FeatureCode = 0x62
	PowerMode          FeatureCode = 0xd6
	Version            FeatureCode = 0xdf
)

// Group is the MCCS section a feature belongs to.
type Group string

// Feature groups, in table order.
const (
	GroupPresetOperation        Group = "PresetOperation"
	GroupImageAdjustment        Group = "ImageAdjustment"
	GroupDisplayControl         Group = "DisplayControl"
	GroupGeometry               Group = "Geometry"
	GroupMiscellaneous          Group = "Miscellaneous"
	GroupAudio                  Group = "Audio"
	GroupDigitalPacketVideoLink Group = "DigitalPacketVideoLink"
)

// Feature is a single entry of the static MCCS feature table.
type Feature struct {
	Group Group
	Name  string
	Code  FeatureCode
}

// Features is the static MCCS feature table. A few codes appear in more than
// one group; the first entry wins when describing a code.
var Features = []Feature{
	{GroupPresetOperation, "CodePage", 0x00},
	{GroupPresetOperation, "RestoreFactoryDefaults", 0x04},
	{GroupPresetOperation, "RestoreFactoryLuminanceContrastDefaults", 0x05},
	{GroupPresetOperation, "RestoreFactoryGeometryDefaults", 0x06},
	{GroupPresetOperation, "RestoreFactoryColorDefaults", 0x08},
	{GroupPresetOperation, "RestoreFactoryTvDefaults", 0x0a},
	{GroupPresetOperation, "SaveRestoreSettings", 0xb0},

	{GroupImageAdjustment, "ColorTemperatureIncrement", 0x0b},
	{GroupImageAdjustment, "ColorTemperatureRequest", 0x0c},
	{GroupImageAdjustment, "Clock", 0x0e},
	{GroupImageAdjustment, "Luminance", 0x10},
	{GroupImageAdjustment, "FleshToneEnhancement", 0x11},
	{GroupImageAdjustment, "Contrast", 0x12},
	{GroupImageAdjustment, "BacklightControl", 0x13},
	{GroupImageAdjustment, "SelectColorPreset", 0x14},
	{GroupImageAdjustment, "VideoGainRed", 0x16},
	{GroupImageAdjustment, "UserColorVisionCompensation", 0x17},
	{GroupImageAdjustment, "VideoGainGreen", 0x18},
	{GroupImageAdjustment, "VideoGainBlue", 0x1a},
	{GroupImageAdjustment, "Focus", 0x1c},
	{GroupImageAdjustment, "AutoSetup", 0x1e},
	{GroupImageAdjustment, "AutoColorSetup", 0x1f},
	{GroupImageAdjustment, "GrayScaleExpansion", 0x2e},
	{GroupImageAdjustment, "ClockPhase", 0x3e},
	{GroupImageAdjustment, "HorizontalMoire", 0x56},
	{GroupImageAdjustment, "VerticalMoire", 0x58},
	{GroupImageAdjustment, "SixAxisSaturationControlRed", 0x59},
	{GroupImageAdjustment, "SixAxisSaturationControlYellow", 0x5a},
	{GroupImageAdjustment, "SixAxisSaturationControlGreen", 0x5b},
	{GroupImageAdjustment, "SixAxisSaturationControlCyan", 0x5c},
	{GroupImageAdjustment, "SixAxisSaturationControlBlue", 0x5d},
	{GroupImageAdjustment, "SixAxisSaturationControlMagenta", 0x5e},
	{GroupImageAdjustment, "BacklightLevelWhite", 0x6b},
	{GroupImageAdjustment, "VideoBlackLevelRed", 0x6c},
	{GroupImageAdjustment, "BacklightLevelRed", 0x6d},
	{GroupImageAdjustment, "VideoBlackLevelGreen", 0x6e},
	{GroupImageAdjustment, "BacklightLevelGreen", 0x6f},
	{GroupImageAdjustment, "VideoBlackLevelBlue", 0x70},
	{GroupImageAdjustment, "BacklightLevelBlue", 0x71},
	{GroupImageAdjustment, "Gamma", 0x72},
	{GroupImageAdjustment, "LutSize", 0x73},
	{GroupImageAdjustment, "SinglePointLutOperation", 0x74},
	{GroupImageAdjustment, "BlockLutOperation", 0x75},
	{GroupImageAdjustment, "AdjustZoom", 0x7c},
	{GroupImageAdjustment, "Sharpness", 0x87},
	{GroupImageAdjustment, "VelocityScanModulation", 0x88},
	{GroupImageAdjustment, "ColorSaturation", 0x8a},
	{GroupImageAdjustment, "TvSharpness", 0x8c},
	{GroupImageAdjustment, "TvContrast", 0x8e},
	{GroupImageAdjustment, "Hue", 0x90},
	{GroupImageAdjustment, "TvBlackLevelLuminance", 0x92},
	{GroupImageAdjustment, "WindowBackground", 0x9a},
	{GroupImageAdjustment, "SixAxisHueControlRed", 0x9b},
	{GroupImageAdjustment, "SixAxisHueControlYellow", 0x9c},
	{GroupImageAdjustment, "SixAxisHueControlGreen", 0x9d},
	{GroupImageAdjustment, "SixAxisHueControlCyan", 0x9e},
	{GroupImageAdjustment, "SixAxisHueControlBlue", 0x9f},
	{GroupImageAdjustment, "SixAxisHueControlMagenta", 0xa0},
	{GroupImageAdjustment, "AutoSetupOnOff", 0xa2},
	{GroupImageAdjustment, "WindowControlOnOff", 0xa4},
	{GroupImageAdjustment, "WindowSelect", 0xa5},
	{GroupImageAdjustment, "WindowSize", 0xa6},
	{GroupImageAdjustment, "WindowTransparency", 0xa7},
	{GroupImageAdjustment, "ScreenOrientation", 0xaa},
	{GroupImageAdjustment, "StereoVideoMode", 0xd4},
	{GroupImageAdjustment, "DisplayApplication", 0xdc},

	{GroupDisplayControl, "HorizontalFrequency", 0xac},
	{GroupDisplayControl, "VerticalFrequency", 0xae},
	{GroupDisplayControl, "SourceTimingMode", 0xb4},
	{GroupDisplayControl, "SourceColorCoding", 0xb5},
	{GroupDisplayControl, "DisplayUsageTime", 0xc6},
	{GroupDisplayControl, "DisplayControllerId", 0xc8},
	{GroupDisplayControl, "DisplayFirmwareLevel", 0xc9},
	{GroupDisplayControl, "OsdButtonLevelControl", 0xca},
	{GroupDisplayControl, "OsdLanguage", 0xcc},
	{GroupDisplayControl, "PowerMode", 0xd6},
	{GroupDisplayControl, "ImageMode", 0xdb},
	{GroupDisplayControl, "Version", 0xdf},

	{GroupGeometry, "HorizontalPosition", 0x20},
	{GroupGeometry, "HorizontalSize", 0x22},
	{GroupGeometry, "HorizontalPincushion", 0x24},
	{GroupGeometry, "HorizontalPincushionBalance", 0x26},
	{GroupGeometry, "HorizontalConvergenceRB", 0x28},
	{GroupGeometry, "HorizontalConvergenceMG", 0x29},
	{GroupGeometry, "HorizontalLinearity", 0x2a},
	{GroupGeometry, "HorizontalLinearityBalance", 0x2c},
	{GroupGeometry, "VerticalPosition", 0x30},
	{GroupGeometry, "VerticalSize", 0x32},
	{GroupGeometry, "VerticalPincushion", 0x34},
	{GroupGeometry, "VerticalPincushionBalance", 0x36},
	{GroupGeometry, "VerticalConvergenceRB", 0x38},
	{GroupGeometry, "VerticalConvergenceMG", 0x39},
	{GroupGeometry, "VerticalLinearity", 0x3a},
	{GroupGeometry, "VerticalLinearityBalance", 0x3c},
	{GroupGeometry, "HorizontalParallelogram", 0x40},
	{GroupGeometry, "VerticalParallelogram", 0x41},
	{GroupGeometry, "HorizontalKeystone", 0x42},
	{GroupGeometry, "VerticalKeystone", 0x43},
	{GroupGeometry, "Rotation", 0x44},
	{GroupGeometry, "TopCornerFlare", 0x46},
	{GroupGeometry, "TopCornerHook", 0x48},
	{GroupGeometry, "BottomCornerFlare", 0x4a},
	{GroupGeometry, "BottomCornerHook", 0x4c},
	{GroupGeometry, "HorizontalMirror", 0x82},
	{GroupGeometry, "VerticalMirror", 0x84},
	{GroupGeometry, "DisplayScaling", 0x86},
	{GroupGeometry, "WindowPositionTlX", 0x95},
	{GroupGeometry, "WindowPositionTlY", 0x96},
	{GroupGeometry, "WindowPositionBrX", 0x97},
	{GroupGeometry, "WindowPositionBrY", 0x98},
	{GroupGeometry, "ScanMode", 0xda},

	{GroupMiscellaneous, "Degauss", 0x01},
	{GroupMiscellaneous, "NewControlValue", 0x02},
	{GroupMiscellaneous, "SoftControls", 0x03},
	{GroupMiscellaneous, "ActiveControl", 0x52},
	{GroupMiscellaneous, "PerformancePreservation", 0x54},
	{GroupMiscellaneous, "InputSource", 0x60},
	{GroupMiscellaneous, "AmbientLightSensor", 0x66},
	{GroupMiscellaneous, "RemoteProcedureCall", 0x76},
	{GroupMiscellaneous, "DisplayIdentificationDataOperation", 0x87},
	{GroupMiscellaneous, "TvChannelUpDown", 0x8b},
	{GroupMiscellaneous, "FlatPanelSubPixelLayout", 0xb2},
	{GroupMiscellaneous, "DisplayTechnologyType", 0xb6},
	{GroupMiscellaneous, "DisplayDescriptorLength", 0xc2},
	{GroupMiscellaneous, "TransmitDisplayDescriptor", 0xc3},
	{GroupMiscellaneous, "EnableDisplayOfDisplayDescriptor", 0xc4},
	{GroupMiscellaneous, "ApplicationEnableKey", 0xc6},
	{GroupMiscellaneous, "StatusIndicators", 0xcd},
	{GroupMiscellaneous, "AuxiliaryDisplaySize", 0xce},
	{GroupMiscellaneous, "AuxiliaryDisplayData", 0xcf},
	{GroupMiscellaneous, "OutputSelect", 0xd0},
	{GroupMiscellaneous, "AssetTag", 0xd2},
	{GroupMiscellaneous, "AuxiliaryPowerOutput", 0xd7},
	{GroupMiscellaneous, "ScratchPad", 0xde},

	{GroupAudio, "AudioSpeakerVolume", 0x62},
	{GroupAudio, "AudioSpeakerSelect", 0x63},
	{GroupAudio, "AudioMicrophoneVolume", 0x64},
	{GroupAudio, "AudioJackConnectionStatus", 0x65},
	{GroupAudio, "AudioMute", 0x8d},
	{GroupAudio, "AudioTreble", 0x8f},
	{GroupAudio, "AudioBass", 0x91},
	{GroupAudio, "AudioBalanceLR", 0x93},
	{GroupAudio, "AudioProcessorMode", 0x94},

	{GroupDigitalPacketVideoLink, "MonitorStatus", 0xb7},
	{GroupDigitalPacketVideoLink, "PacketCount", 0xb8},
	{GroupDigitalPacketVideoLink, "MonitorXOrigin", 0xb9},
	{GroupDigitalPacketVideoLink, "MonitorYOrigin", 0xba},
	{GroupDigitalPacketVideoLink, "HeaderErrorCount", 0xbb},
	{GroupDigitalPacketVideoLink, "BodyCrcErrorCount", 0xbc},
	{GroupDigitalPacketVideoLink, "ClientId", 0xbd},
	{GroupDigitalPacketVideoLink, "LinkControl", 0xbe},
}

// Lookup resolves a feature by name. Both "Luminance" and the qualified
// "ImageAdjustment.Luminance" forms are accepted, case-insensitively.
func Lookup(name string) (FeatureCode, bool) {
	group, feature, qualified := strings.Cut(name, ".")
	if !qualified {
		feature, group = group, ""
	}

	for _, f := range Features {
		if group != "" && !strings.EqualFold(string(f.Group), group) {
			continue
		}
		if strings.EqualFold(f.Name, feature) {
			return f.Code, true
		}
	}
	return 0, false
}

// Describe returns the table entry for a code.
func Describe(code FeatureCode) (Feature, bool) {
	for _, f := range Features {
		if f.Code == code {
			return f, true
		}
	}
	return Feature{}, false
}
