// Package testutil holds the fakes shared by circlebot's tests: a recording
// Bot API server, canned replies, message and image fixtures, a sleeper that
// never sleeps, and a concurrency-safe log sink.
//
//	server := testutil.NewMockServer(t)
//	server.On("/bot"+testutil.TestToken+"/sendSticker", func(w http.ResponseWriter, r *http.Request) {
//	    testutil.ReplySticker(w, 1)
//	})
//	client := testutil.NewTestClient(t, server.BaseURL())
//	...
//	server.CapturesFor("sendSticker")[0].MultipartFile(t, "sticker")
package testutil
