// Package monitor multiplexes packet capture subscriptions for many SIMs
// over a single authenticated event connection.
//
// A Monitor owns one Transport. Connect opens it and authenticates with the
// configured API key; Subscribe and SubscribeMany then attach SIMs on the
// remote side and return a Subscription that yields the captured packets of
// every SIM it watches:
//
//	m := monitor.New(socketio.New(socketio.DefaultConfig()), cfg)
//	if err := m.Connect(ctx); err != nil {
//		return err
//	}
//	defer m.Close()
//
//	sub, err := m.Subscribe(ctx, "000868942")
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//
//	for pkt, err := range sub.Packets(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(capture.Summarize(pkt.Data))
//	}
//
// Attachment is reference counted per SIM: the first subscriber sends
// subscribe:packets, the last one to close sends unsubscribe:packets.
// Concurrent subscribers of the same SIM share a single attachment outcome.
//
// Each Connect starts a new session with its own entity registry and
// disconnection signal. When the connection drops, every subscription of
// that session drains its queued packets and then fails with ErrDisconnected;
// nothing carries over into the next session.
package monitor
