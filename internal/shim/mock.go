package shim

// backendMockJS is the capability-gated local stand-in for external backend
// services. Generated projects frequently assume a hosted backend with
// key-value collections, presence and AI endpoints; the mock keeps those
// previews runnable with no network at all. State lives only for the
// lifetime of the sandboxed document.
const backendMockJS = `
  // Local backend mock (offline preview support).
  try {
    if (typeof g.backend === 'undefined') {
      var __collections = {};
      var __nextId = 1;

      function __collection(name) {
        if (!__collections[name]) __collections[name] = {};
        return __collections[name];
      }

      g.backend = {
        mock: true,

        collection: function (name) {
          var store = __collection(name);
          return {
            get: function (key) {
              return Promise.resolve(store[key] === undefined ? null : store[key]);
            },
            set: function (key, value) {
              store[key] = value;
              return Promise.resolve(value);
            },
            add: function (value) {
              var key = 'rec_' + (__nextId++);
              store[key] = value;
              return Promise.resolve({ id: key, value: value });
            },
            remove: function (key) {
              var had = store[key] !== undefined;
              delete store[key];
              return Promise.resolve(had);
            },
            list: function () {
              var out = [];
              for (var k in store) out.push({ id: k, value: store[k] });
              return Promise.resolve(out);
            }
          };
        },

        presence: {
          join: function (room, who) {
            var store = __collection('__presence_' + room);
            var id = who || 'guest_' + (__nextId++);
            store[id] = { joined: Date.now() };
            return Promise.resolve({ id: id, count: Object.keys(store).length });
          },
          leave: function (room, id) {
            delete __collection('__presence_' + room)[id];
            return Promise.resolve(true);
          },
          list: function (room) {
            return Promise.resolve(Object.keys(__collection('__presence_' + room)));
          }
        },

        ai: {
          complete: function (prompt) {
            return Promise.resolve('[preview] AI completion unavailable offline (prompt: ' +
              String(prompt).slice(0, 80) + ')');
          },
          image: function () {
            return Promise.resolve('data:image/svg+xml,' + encodeURIComponent(
              '<svg xmlns="http://www.w3.org/2000/svg" width="256" height="256">' +
              '<rect width="256" height="256" fill="#ddd"/>' +
              '<text x="50%" y="50%" text-anchor="middle">preview</text></svg>'));
          },
          speak: function () {
            return Promise.resolve({ ok: true, offline: true });
          }
        }
      };
    }
  } catch (e) {}
`
