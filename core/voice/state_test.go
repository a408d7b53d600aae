package voice

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = DescribeTable("next",
	func(from State, ev Event, to State) {
		Expect(next(from, ev)).To(Equal(to))
	},
	Entry("start", Offline, EventStart, Connecting),
	Entry("start while online", Online, EventStart, Online),
	Entry("mic failure", Connecting, EventMicFailed, Offline),
	Entry("socket open", Connecting, EventSocketOpen, Online),
	Entry("partial transcript", Online, EventTranscript, Online),
	Entry("final transcript", Online, EventFinalTranscript, Offline),
	Entry("inactivity", Online, EventInactivity, Offline),
	Entry("inactivity while connecting", Connecting, EventInactivity, Connecting),
	Entry("stop while connecting", Connecting, EventStop, Offline),
	Entry("stop while offline", Offline, EventStop, Offline),
	Entry("socket error", Connecting, EventSocketError, Offline),
	Entry("socket closed", Online, EventSocketClosed, Offline),
)
